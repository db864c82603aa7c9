package lattice

import (
	"errors"
	"testing"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
	"github.com/tablemap/tablemap/internal/testutil"
)

func TestDetectRuledGrid(t *testing.T) {
	raw := testutil.GridPage(1, []float64{100, 200, 300}, []float64{100, 130, 160, 190},
		[][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}})
	tables, err := Detect(normalize.Normalize(raw))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	tbl := tables[0]
	want := geometry.BBox{X0: 100, Top: 100, X1: 300, Bottom: 190}
	if !tbl.BBox.Equal(want) {
		t.Errorf("bbox %+v, want %+v", tbl.BBox, want)
	}
	if tbl.Strategy != models.StrategyLattice || tbl.Reason != "Found by lattice analysis (6 cells)" {
		t.Errorf("unexpected candidate %s %q", tbl.Strategy, tbl.Reason)
	}
	if len(tbl.Geometries) != 7 {
		t.Errorf("expected 7 geometries, got %d", len(tbl.Geometries))
	}
}

func TestDetectInsufficientGeometry(t *testing.T) {
	raw := &bridge.RawPageData{PageNumber: 1, Width: 612, Height: 792, Lines: []bridge.RawBox{
		testutil.HLine(0, 100, 10), testutil.VLine(10, 0, 100), testutil.VLine(50, 0, 100),
	}}
	if _, err := Detect(normalize.Normalize(raw)); !errors.Is(err, models.ErrInsufficientGeometry) {
		t.Errorf("expected ErrInsufficientGeometry, got %v", err)
	}

	// two lines each way that never meet
	raw.Lines = []bridge.RawBox{
		testutil.HLine(0, 100, 10), testutil.HLine(0, 100, 20),
		testutil.VLine(300, 0, 100), testutil.VLine(310, 0, 100),
	}
	if _, err := Detect(normalize.Normalize(raw)); !errors.Is(err, models.ErrInsufficientGeometry) {
		t.Errorf("expected ErrInsufficientGeometry for disjoint lines, got %v", err)
	}
}

func TestCellsHaveCoveredEdges(t *testing.T) {
	// interior vertical stops halfway, leaving the lower middle cells open
	h := []models.Segment{hseg(0, 200, 0), hseg(0, 200, 50), hseg(0, 200, 100)}
	v := []models.Segment{vseg(0, 0, 100), vseg(100, 0, 50), vseg(200, 0, 100), vseg(100, 99.5, 100)}
	cells := FindCells(Intersections(h, v), h, v)
	if len(cells) == 0 {
		t.Fatal("expected cells")
	}
	for _, c := range cells {
		if c.BBox.Width() < minCellSize || c.BBox.Height() < minCellSize {
			t.Errorf("cell %+v below minimum size", c.BBox)
		}
		if n := CoveredEdges(c.BBox, h, v); n < minCoveredEdges {
			t.Errorf("cell %+v has only %d covered edges", c.BBox, n)
		}
	}
	for _, c := range cells {
		if c.BBox.Equal(geometry.BBox{X0: 0, Top: 50, X1: 100, Bottom: 100}) {
			return
		}
	}
	t.Error("three-sided lower cell missing")
}

func TestGroupCellsConnectivity(t *testing.T) {
	cells := []Cell{
		{BBox: geometry.BBox{X0: 0, Top: 0, X1: 10, Bottom: 10}, Col: 0, Row: 0},
		{BBox: geometry.BBox{X0: 10, Top: 10, X1: 20, Bottom: 20}, Col: 1, Row: 1},
		{BBox: geometry.BBox{X0: 50, Top: 0, X1: 60, Bottom: 10}, Col: 5, Row: 0},
		{BBox: geometry.BBox{X0: 50, Top: 10, X1: 60, Bottom: 20}, Col: 5, Row: 1},
		{BBox: geometry.BBox{X0: 90, Top: 90, X1: 95, Bottom: 95}, Col: 9, Row: 9},
	}
	tables := GroupCells(cells)
	if len(tables) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(tables))
	}
	seen := map[[2]int]int{}
	for ti, tbl := range tables {
		if len(tbl.Cells) != 2 {
			t.Errorf("group %d has %d cells", ti, len(tbl.Cells))
		}
		for _, c := range tbl.Cells {
			k := [2]int{c.Col, c.Row}
			if prev, ok := seen[k]; ok {
				t.Errorf("cell %v in groups %d and %d", k, prev, ti)
			}
			seen[k] = ti
		}
	}
	if !tables[0].BBox.Equal(geometry.BBox{X0: 0, Top: 0, X1: 20, Bottom: 20}) {
		t.Errorf("corner-joined group bbox %+v", tables[0].BBox)
	}
}

func TestDetectSeparateGrids(t *testing.T) {
	a := testutil.GridPage(1, []float64{50, 150, 250}, []float64{100, 130, 160}, nil)
	b := testutil.GridPage(1, []float64{50, 150, 250}, []float64{400, 430, 460}, nil)
	a.Lines = append(a.Lines, b.Lines...)
	tables, err := Detect(normalize.Normalize(a))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0].BBox.IntersectArea(tables[1].BBox) != 0 {
		t.Error("tables overlap")
	}
}

func TestSmallTableNeedsText(t *testing.T) {
	raw := testutil.GridPage(1, []float64{100, 200, 300}, []float64{100, 130}, nil)
	tables, err := Detect(normalize.Normalize(raw))
	if err != nil || len(tables) != 0 {
		t.Fatalf("two empty cells should not make a table: %v, %d", err, len(tables))
	}
	raw = testutil.GridPage(1, []float64{100, 200, 300}, []float64{100, 130}, [][]string{{"x", ""}})
	tables, _ = Detect(normalize.Normalize(raw))
	if len(tables) != 1 {
		t.Errorf("two cells with text should make a table, got %d", len(tables))
	}
}

func hseg(x0, x1, y float64) models.Segment {
	return models.Segment{BBox: geometry.BBox{X0: x0, Top: y, X1: x1, Bottom: y}, Type: models.GeomHorizontal, Source: models.SourceLine}
}

func vseg(x, top, bottom float64) models.Segment {
	return models.Segment{BBox: geometry.BBox{X0: x, Top: top, X1: x, Bottom: bottom}, Type: models.GeomVertical, Source: models.SourceLine}
}
