package structure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
	"github.com/tablemap/tablemap/internal/testutil"
)

func candidate(s models.Strategy, x0, top, x1, bottom float64) models.TableCandidate {
	return models.TableCandidate{BBox: geometry.BBox{X0: x0, Top: top, X1: x1, Bottom: bottom}, Strategy: s}
}

func ruledPage(num int) *bridge.RawPageData {
	return testutil.GridPage(num, []float64{100, 200, 300}, []float64{100, 130, 160, 190},
		[][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}})
}

func textPage(num int) *bridge.RawPageData {
	rows := [][]string{{"Item", "Qty", "Cost"}, {"nuts", "4", "12"}, {"bolts", "9", "30"}, {"pins", "2", "5"}}
	return &bridge.RawPageData{PageNumber: num, Width: 612, Height: 792,
		Words: testutil.TextColumns([]float64{50, 150, 250}, 400, 12, rows)}
}

type countingProposer struct {
	calls  atomic.Int32
	panics bool
}

func (p *countingProposer) Propose(*normalize.Page) []geometry.BBox {
	p.calls.Add(1)
	if p.panics {
		panic("proposer exploded")
	}
	return nil
}

func TestMergeGeometricPriority(t *testing.T) {
	geometric := []models.TableCandidate{candidate(models.StrategyLattice, 100, 100, 300, 200)}
	textual := []models.TableCandidate{
		candidate(models.StrategyTextOnly, 110, 110, 290, 190),
		candidate(models.StrategyTextOnly, 100, 500, 300, 600),
		candidate(models.StrategyTextOnly, 290, 190, 400, 300),
	}
	got := Merge(geometric, textual)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].Strategy != models.StrategyLattice {
		t.Errorf("geometric candidate must come first, got %s", got[0].Strategy)
	}
	for _, c := range got[1:] {
		if geometry.IoU(c.BBox, geometric[0].BBox) > textualOverlapLimit {
			t.Errorf("overlapping text candidate kept: %+v", c.BBox)
		}
	}
}

func TestMergeWithoutGeometric(t *testing.T) {
	textual := []models.TableCandidate{candidate(models.StrategyTextOnly, 0, 0, 10, 10)}
	if got := Merge(nil, textual); len(got) != 1 {
		t.Errorf("expected the text candidate to survive, got %d", len(got))
	}
}

func TestAnalyzeRuledPage(t *testing.T) {
	layout := AnalyzePage(ruledPage(1), DefaultOptions())
	tables := layout.Tables()
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if tables[0].Strategy != models.StrategyLattice {
		t.Errorf("strategy = %s", tables[0].Strategy)
	}
	if layout.Orientation != models.Portrait || layout.Width != 612 {
		t.Errorf("unexpected page header %+v", layout)
	}
	for i := 1; i < len(layout.Elements); i++ {
		if layout.Elements[i].BBox.Top < layout.Elements[i-1].BBox.Top {
			t.Fatalf("elements not ordered by top at %d", i)
		}
	}
}

func TestAnalyzeTextPage(t *testing.T) {
	layout := AnalyzePage(textPage(2), DefaultOptions())
	tables := layout.Tables()
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if tables[0].Strategy != models.StrategyTextOnly {
		t.Errorf("strategy = %s", tables[0].Strategy)
	}
	if len(tables[0].Geometries) != 2 {
		t.Errorf("expected 2 separators, got %d", len(tables[0].Geometries))
	}
}

func TestBlocksUnderTableRemoved(t *testing.T) {
	raw := &bridge.RawPageData{PageNumber: 1, Width: 612, Height: 792,
		Words: []bridge.RawWord{testutil.Word("spanning", 100, 100), testutil.Word("elsewhere", 100, 400)}}
	page := normalize.Normalize(raw)
	tables := []models.TableCandidate{candidate(models.StrategyStream, 99.5, 99.5, 140.5, 108.5)}
	if !coveredByTable(page.Blocks[0].BBox, tables) {
		t.Error("block inside table should be covered")
	}
	if coveredByTable(page.Blocks[1].BBox, tables) {
		t.Error("distant block should not be covered")
	}
}

func TestHybridRunsOnlyWithoutLattice(t *testing.T) {
	p := &countingProposer{}
	opts := DefaultOptions()
	opts.Proposer = p

	AnalyzePage(ruledPage(1), opts)
	if n := p.calls.Load(); n != 0 {
		t.Errorf("proposer called %d times despite a lattice table", n)
	}
	AnalyzePage(textPage(2), opts)
	if n := p.calls.Load(); n != 1 {
		t.Errorf("proposer called %d times, want 1", n)
	}
}

func TestDisabledDetectors(t *testing.T) {
	opts := Options{Proposer: &countingProposer{}}
	layout := AnalyzePage(ruledPage(1), opts)
	if n := len(layout.Tables()); n != 0 {
		t.Errorf("all detectors off but found %d tables", n)
	}
}

func TestBuildKeepsPageOrder(t *testing.T) {
	doc := &bridge.Document{Source: "doc.pdf", Pages: []*bridge.RawPageData{ruledPage(1), textPage(2), ruledPage(3), textPage(4)}}
	opts := DefaultOptions()
	opts.Workers = 2
	smap, err := Build(context.Background(), doc, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if smap.Source != "doc.pdf" {
		t.Errorf("source = %q", smap.Source)
	}
	if _, err := uuid.Parse(smap.RunID); err != nil {
		t.Errorf("run id %q: %v", smap.RunID, err)
	}
	for i, p := range smap.Pages {
		if p.Number != i+1 {
			t.Errorf("page %d has number %d", i, p.Number)
		}
		if len(p.Tables()) != 1 {
			t.Errorf("page %d: expected 1 table, got %d", p.Number, len(p.Tables()))
		}
	}
}

func TestBuildRecoversPagePanic(t *testing.T) {
	opts := DefaultOptions()
	opts.Proposer = &countingProposer{panics: true}
	doc := &bridge.Document{Pages: []*bridge.RawPageData{ruledPage(1), textPage(2)}}
	smap, err := Build(context.Background(), doc, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(smap.Pages[0].Tables()) != 1 {
		t.Error("healthy page lost its table")
	}
	broken := smap.Pages[1]
	if broken.Number != 2 || len(broken.Elements) != 0 || broken.Width != 612 {
		t.Errorf("panicking page = %+v", broken)
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build(context.Background(), &bridge.Document{}, DefaultOptions()); !errors.Is(err, models.ErrMalformedInput) {
		t.Errorf("empty document: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := &bridge.Document{Pages: []*bridge.RawPageData{ruledPage(1)}}
	if _, err := Build(ctx, doc, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled build: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	doc := &bridge.Document{Source: "/tmp/doc.pdf", Pages: []*bridge.RawPageData{ruledPage(1), textPage(2)}}
	smap, err := Build(context.Background(), doc, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	for _, format := range []Format{FormatJSON, FormatYAML} {
		path := filepath.Join(t.TempDir(), "map"+format.Ext())
		if err := Save(path, smap, format, 1); err != nil {
			t.Fatalf("%s save: %v", format, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("%s load: %v", format, err)
		}
		if got.Source != smap.Source || got.RunID != smap.RunID || len(got.Pages) != 2 {
			t.Fatalf("%s header mismatch: %+v", format, got)
		}
		for i := range smap.Pages {
			want, have := smap.Pages[i].Tables(), got.Pages[i].Tables()
			if len(want) != len(have) {
				t.Fatalf("%s page %d: %d tables, want %d", format, i+1, len(have), len(want))
			}
			for j := range want {
				if !want[j].BBox.Equal(have[j].BBox) || want[j].Strategy != have[j].Strategy || len(want[j].Geometries) != len(have[j].Geometries) {
					t.Errorf("%s page %d table %d: %+v, want %+v", format, i+1, j, have[j], want[j])
				}
			}
			if len(got.Pages[i].Elements) != len(smap.Pages[i].Elements) {
				t.Errorf("%s page %d: %d elements, want %d", format, i+1, len(got.Pages[i].Elements), len(smap.Pages[i].Elements))
			}
		}
	}
}

func TestLoadRejectsInvalidMap(t *testing.T) {
	cases := map[string]string{
		"missing pages": `{"pdf_path": "x.pdf"}`,
		"bad element":   `{"pdf_path": "x.pdf", "pages": [{"page_number": 1, "dimensions": [612, 792], "elements": [{"type": "chart", "bbox": [0, 0, 1, 1]}]}]}`,
		"short bbox":    `{"pdf_path": "x.pdf", "pages": [{"page_number": 1, "dimensions": [612, 792], "elements": [{"type": "image", "bbox": [0, 0, 1]}]}]}`,
		"table no kind": `{"pdf_path": "x.pdf", "pages": [{"page_number": 1, "dimensions": [612, 792], "elements": [{"type": "table", "bbox": [0, 0, 1, 1]}]}]}`,
		"not json":      `pages:`,
	}
	dir := t.TempDir()
	for name, body := range cases {
		path := filepath.Join(dir, "map.json")
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); !errors.Is(err, models.ErrMalformedInput) {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("xml should be rejected")
	}
	if FormatFor("a/b.YML") != FormatYAML || FormatFor("a/b.json") != FormatJSON {
		t.Error("FormatFor misread extensions")
	}
}
