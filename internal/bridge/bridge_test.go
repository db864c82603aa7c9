package bridge_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/testutil"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadDocumentDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.json", `{
		"pages": [{
			"width": 600, "height": 800,
			"words": [{"text": "Total", "x0": 10, "x1": 40, "top": 100, "size": 9}],
			"lines": [{"x0": 50, "top": 120, "x1": 10}, {"x0": 70, "top": 300, "bottom": 100}]
		}]
	}`)

	doc, err := bridge.ReadDocument(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	p := doc.Pages[0]
	if p.PageNumber != 1 {
		t.Errorf("page number = %d, want 1", p.PageNumber)
	}
	if p.Words[0].Bottom != 109 {
		t.Errorf("word bottom = %v, want top+size", p.Words[0].Bottom)
	}
	if l := p.Lines[0]; l.X0 != 10 || l.X1 != 50 || l.Bottom != 120 {
		t.Errorf("reversed line not normalised: %+v", l)
	}
	if l := p.Lines[1]; l.Top != 100 || l.Bottom != 300 || l.X1 != 70 {
		t.Errorf("vertical line not normalised: %+v", l)
	}
	if doc.Source == "" {
		t.Error("source should default to the document path")
	}
}

func TestReadDocumentDropsCoordinateFreePrimitives(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.json", `{"pages":[
		{"width": 100, "height": 100, "words": [{"text": "kept", "x0": 1, "top": 2, "x1": 20, "bottom": 10}]},
		{"width": 100, "height": 100,
			"words": [{"text": "x"}, {"text": "y", "x0": 5, "top": 5}],
			"lines": [{"top": 120, "bottom": 130}, {"x0": 0, "top": 50, "x1": 90}],
			"rects": [{"x0": 1, "x1": 2}]}
	]}`)

	doc, err := bridge.ReadDocument(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected both pages, got %d", len(doc.Pages))
	}
	if w := doc.Pages[0].Words; len(w) != 1 || w[0].Text != "kept" {
		t.Errorf("first page words = %+v", w)
	}
	p := doc.Pages[1]
	if len(p.Words) != 1 || p.Words[0].Text != "y" {
		t.Errorf("second page words = %+v", p.Words)
	}
	if len(p.Lines) != 1 || p.Lines[0].X1 != 90 {
		t.Errorf("second page lines = %+v", p.Lines)
	}
	if len(p.Rects) != 0 {
		t.Errorf("rect without y survived: %+v", p.Rects)
	}
}

func TestReadPageDirOrdersAndSkipsBroken(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page_10.json", `{"width": 100, "height": 100}`)
	writeFile(t, dir, "page_2.json", `{"width": 100, "height": 100}`)
	writeFile(t, dir, "page_3.json", `{not json`)
	writeFile(t, dir, "notes.txt", "ignored")

	doc, err := bridge.ReadPageDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 readable pages, got %d", len(doc.Pages))
	}
	if doc.Pages[0].PageNumber != 2 || doc.Pages[1].PageNumber != 10 {
		t.Errorf("pages out of order: %d, %d", doc.Pages[0].PageNumber, doc.Pages[1].PageNumber)
	}
}

func TestMissingDimensionsUsePrimitiveExtent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.json", `{"pages":[{"rects":[{"x0":5,"top":5,"x1":250,"bottom":400}]}]}`)
	doc, err := bridge.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p := doc.Pages[0]; p.Width != 250 || p.Height != 400 {
		t.Errorf("dimensions = %vx%v, want 250x400", p.Width, p.Height)
	}
}

func TestWriteDocumentRoundTrip(t *testing.T) {
	doc := &bridge.Document{Source: "in.pdf", Pages: []*bridge.RawPageData{{
		PageNumber: 1, Width: 612, Height: 792,
		Words: []bridge.RawWord{{Text: "A", X0: 1, Top: 2, X1: 3, Bottom: 4}},
		Lines: []bridge.RawBox{{X0: 0, Top: 10, X1: 100, Bottom: 10}},
	}}}
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := bridge.WriteDocument(path, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := bridge.ReadDocument(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if back.Source != "in.pdf" || back.Pages[0].Words[0] != doc.Pages[0].Words[0] || back.Pages[0].Lines[0] != doc.Pages[0].Lines[0] {
		t.Errorf("round trip mismatch: %+v", back.Pages[0])
	}
}

func TestOpenSamplePDF(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pdf parsing in short mode")
	}
	path := filepath.Join(testutil.TestDataDir, "sample.pdf")
	if _, err := os.Stat(path); testutil.TestDataDir == "" || err != nil {
		t.Skip("no sample pdf available")
	}
	doc, err := bridge.Load(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, p := range doc.Pages {
		if p.Width <= 0 || p.Height <= 0 {
			t.Errorf("page %d has no dimensions", p.PageNumber)
		}
		for _, w := range p.Words {
			if w.X1 < w.X0 || w.Bottom < w.Top {
				t.Errorf("page %d word %q has inverted box", p.PageNumber, w.Text)
			}
		}
	}
}
