package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tablemap/tablemap/internal/geometry"
)

func samplePage() PageLayout {
	page := PageLayout{Number: 2, Width: 612, Height: 792, Orientation: Portrait}
	page.Elements = append(page.Elements,
		TableElement(TableCandidate{
			BBox:     geometry.BBox{X0: 50, Top: 100, X1: 250, Bottom: 190},
			Strategy: StrategyTextOnly,
			Reason:   "Found by text alignment",
			Geometries: []Segment{
				{BBox: geometry.BBox{X0: 150, Top: 100, X1: 150, Bottom: 190}, Type: GeomVirtual, Source: SourceVirtual},
			},
		}),
		SegmentElement(Segment{BBox: geometry.BBox{X0: 10, Top: 40, X1: 300, Bottom: 40}, Type: GeomHorizontal, Source: SourceLine}),
		BlockElement(TextBlock{
			BBox:  geometry.BBox{X0: 10, Top: 20, X1: 80, Bottom: 30},
			Text:  "Heading text",
			Words: []TextWord{{Text: "Heading", BBox: geometry.BBox{X0: 10, Top: 20, X1: 50, Bottom: 30}}, {Text: "text", BBox: geometry.BBox{X0: 55, Top: 20, X1: 80, Bottom: 30}}},
		}),
		ImageElement(geometry.BBox{X0: 400, Top: 10, X1: 500, Bottom: 60}),
	)
	page.SortElements()
	return page
}

func TestSortElementsByTop(t *testing.T) {
	page := samplePage()
	var tops []float64
	for _, el := range page.Elements {
		tops = append(tops, el.BBox.Top)
	}
	for i := 1; i < len(tops); i++ {
		if tops[i] < tops[i-1] {
			t.Fatalf("elements not ordered by top: %v", tops)
		}
	}
	if page.Elements[0].Type != ElementImage {
		t.Errorf("expected image first, got %s", page.Elements[0].Type)
	}
}

func TestStructureMapJSONKeepsVariants(t *testing.T) {
	smap := StructureMap{Source: "/tmp/report.pdf", Pages: []PageLayout{samplePage()}}
	data, err := json.Marshal(smap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"pdf_path"`, `"parsing_strategy":"text_only"`, `"geom_type":"virtual_line"`, `"dimensions":[612,792]`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("missing %s in %s", key, data)
		}
	}

	var back StructureMap
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tables := back.Pages[0].Tables()
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if tables[0].Geometries[0].Source != SourceVirtual || !tables[0].Geometries[0].IsVertical() {
		t.Errorf("virtual separator lost its kind: %+v", tables[0].Geometries[0])
	}
	blocks := back.Pages[0].TextBlocks()
	if len(blocks) != 1 || len(blocks[0].Words) != 2 {
		t.Fatalf("text block words lost: %+v", blocks)
	}
}

func TestStructureMapYAML(t *testing.T) {
	smap := StructureMap{Source: "doc.pdf", RunID: "r1", Pages: []PageLayout{samplePage()}}
	data, err := yaml.Marshal(smap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back StructureMap
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.RunID != "r1" || len(back.Pages) != 1 || len(back.Pages[0].Elements) != 4 {
		t.Errorf("yaml round trip lost data: %+v", back)
	}
	if back.Pages[0].Elements[1].Type != ElementTextBlock {
		t.Errorf("unexpected element order %s", back.Pages[0].Elements[1].Type)
	}
}

func TestUnknownElementTypeIsMalformed(t *testing.T) {
	var el Element
	err := json.Unmarshal([]byte(`{"type":"curve","bbox":[0,0,1,1]}`), &el)
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestSegmentLikeness(t *testing.T) {
	thin := Segment{BBox: geometry.BBox{X0: 0, Top: 0, X1: 2, Bottom: 40}, Type: GeomRect, Source: SourceRect}
	if !thin.VerticalLike() || thin.HorizontalLike() {
		t.Error("tall narrow rect should be vertical-like only")
	}
	if OrientationOf(842, 595) != Landscape || OrientationOf(595, 842) != Portrait {
		t.Error("orientation classification wrong")
	}
}
