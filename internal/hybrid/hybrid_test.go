package hybrid

import (
	"errors"
	"testing"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
	"github.com/tablemap/tablemap/internal/testutil"
)

type stubProposer []geometry.BBox

func (s stubProposer) Propose(*normalize.Page) []geometry.BBox { return s }

func page(lines []bridge.RawBox, words []bridge.RawWord) *normalize.Page {
	return normalize.Normalize(&bridge.RawPageData{PageNumber: 1, Width: 612, Height: 792, Lines: lines, Words: words})
}

func TestClassify(t *testing.T) {
	p := page([]bridge.RawBox{testutil.VLine(100, 0, 50), testutil.VLine(200, 0, 50), testutil.HLine(0, 300, 20)}, nil)
	if got := Classify(geometry.BBox{X0: 90, Top: 10, X1: 210, Bottom: 40}, p.Segments); got != models.StrategyLattice {
		t.Errorf("two verticals: got %s", got)
	}
	if got := Classify(geometry.BBox{X0: 120, Top: 10, X1: 180, Bottom: 40}, p.Segments); got != models.StrategyStream {
		t.Errorf("no verticals: got %s", got)
	}

	region := geometry.BBox{X0: 100, Top: 10, X1: 200, Bottom: 40}
	tests := []struct {
		name  string
		lines []bridge.RawBox
	}{
		{"on the border", []bridge.RawBox{testutil.VLine(100, 0, 50), testutil.VLine(200, 0, 50)}},
		{"corner only", []bridge.RawBox{testutil.VLine(100, 0, 10), testutil.VLine(200, 40, 60)}},
		{"inside x but only meeting the top edge", []bridge.RawBox{testutil.VLine(130, 0, 10), testutil.VLine(170, 0, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := page(tt.lines, nil)
			if got := Classify(region, p.Segments); got != models.StrategyStream {
				t.Errorf("got %s, want stream", got)
			}
		})
	}
}

func TestStreamUsesModalLineEdges(t *testing.T) {
	lines := []bridge.RawBox{testutil.HLine(80, 320, 100), testutil.HLine(80, 320, 130), testutil.HLine(80, 320, 160)}
	words := testutil.TextColumns([]float64{110, 170}, 110, 25, [][]string{{"aaaa", "bbbb"}, {"cccc", "dddd"}})
	p := page(lines, words)

	tables, err := Detect(p, stubProposer{{X0: 100, Top: 100, X1: 200, Bottom: 160}})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	tbl := tables[0]
	if tbl.Strategy != models.StrategyStream {
		t.Errorf("strategy %s", tbl.Strategy)
	}
	if !tbl.BBox.Equal(geometry.BBox{X0: 80, Top: 100, X1: 320, Bottom: 160}) {
		t.Errorf("bbox %+v", tbl.BBox)
	}
	if tbl.Reason != "Found by geometric analysis (3h/0v geoms)" {
		t.Errorf("reason %q", tbl.Reason)
	}
}

func TestStreamFallsBackToTextUnion(t *testing.T) {
	lines := []bridge.RawBox{testutil.HLine(150, 170, 100), testutil.HLine(150, 170, 150)}
	words := []bridge.RawWord{testutil.Word("left", 100, 110), testutil.Word("right", 275, 110)}
	p := page(lines, words)

	got := expandStream(geometry.BBox{X0: 140, Top: 100, X1: 180, Bottom: 150}, p.Segments, p.Blocks)
	if got.X0 != 100 || got.X1 != 300 {
		t.Errorf("expected union with text extent, got %+v", got)
	}
}

func TestSpanningBlockIgnored(t *testing.T) {
	blocks := []models.TextBlock{
		{BBox: geometry.BBox{X0: 100, Top: 10, X1: 120, Bottom: 18}},
		{BBox: geometry.BBox{X0: 150, Top: 20, X1: 170, Bottom: 28}},
		{BBox: geometry.BBox{X0: 0, Top: 30, X1: 400, Bottom: 38}},
	}
	x0, x1 := textExtent(geometry.BBox{X0: 0, Top: 0, X1: 500, Bottom: 50}, blocks)
	if x0 != 100 || x1 != 170 {
		t.Errorf("extent %v..%v, want 100..170", x0, x1)
	}
}

func TestOverlappingCandidatesMergeAsLattice(t *testing.T) {
	lines := []bridge.RawBox{
		testutil.VLine(100, 100, 200), testutil.VLine(300, 100, 200),
		testutil.HLine(100, 300, 100), testutil.HLine(100, 300, 200),
	}
	p := page(lines, nil)
	tables, err := Detect(p, stubProposer{
		{X0: 150, Top: 180, X1: 250, Bottom: 195},
		{X0: 90, Top: 100, X1: 310, Bottom: 150},
	})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected merged table, got %d", len(tables))
	}
	if tables[0].Strategy != models.StrategyLattice {
		t.Errorf("merged strategy %s", tables[0].Strategy)
	}
	if !tables[0].BBox.Equal(geometry.BBox{X0: 90, Top: 100, X1: 310, Bottom: 200}) {
		t.Errorf("bbox %+v", tables[0].BBox)
	}
	if tables[0].Reason != "Found by geometric analysis (2h/2v geoms)" {
		t.Errorf("reason %q", tables[0].Reason)
	}
}

func TestValidationDropsOrphansAndOutOfPage(t *testing.T) {
	p := page([]bridge.RawBox{testutil.HLine(10, 100, 10)}, nil)
	tables, err := Detect(p, stubProposer{
		{X0: 300, Top: 300, X1: 400, Bottom: 400},
		{X0: 500, Top: 5, X1: 700, Bottom: 20},
	})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(tables) != 0 {
		t.Errorf("expected no tables, got %+v", tables)
	}

	if _, err := Detect(p, stubProposer{}); !errors.Is(err, models.ErrInsufficientGeometry) {
		t.Errorf("empty proposals: got %v", err)
	}
}
