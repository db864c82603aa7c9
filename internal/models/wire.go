package models

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tablemap/tablemap/internal/geometry"
)

// The persisted structure map uses flat element records; these wire structs
// translate to and from the tagged variants.

type bboxWire [4]float64

func toBBoxWire(b geometry.BBox) bboxWire { return bboxWire{b.X0, b.Top, b.X1, b.Bottom} }
func (w bboxWire) bbox() geometry.BBox  { return geometry.New(w[0], w[1], w[2], w[3]) }

type segmentWire struct {
	X0       float64  `json:"x0" yaml:"x0"`
	Top      float64  `json:"top" yaml:"top"`
	X1       float64  `json:"x1" yaml:"x1"`
	Bottom   float64  `json:"bottom" yaml:"bottom"`
	GeomType GeomType `json:"geom_type" yaml:"geom_type"`
}

func toSegmentWire(s Segment) segmentWire {
	return segmentWire{s.BBox.X0, s.BBox.Top, s.BBox.X1, s.BBox.Bottom, s.Type}
}

func (w segmentWire) segment(src SourceKind) Segment {
	if w.GeomType == GeomVirtual {
		src = SourceVirtual
	}
	return Segment{BBox: geometry.New(w.X0, w.Top, w.X1, w.Bottom), Type: w.GeomType, Source: src}
}

type wordWire struct {
	Text   string  `json:"text" yaml:"text"`
	X0     float64 `json:"x0" yaml:"x0"`
	X1     float64 `json:"x1" yaml:"x1"`
	Top    float64 `json:"top" yaml:"top"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
}

type elementWire struct {
	Type            ElementType   `json:"type" yaml:"type"`
	BBox            bboxWire      `json:"bbox" yaml:"bbox,flow"`
	GeomType        GeomType      `json:"geom_type,omitempty" yaml:"geom_type,omitempty"`
	Text            string        `json:"text,omitempty" yaml:"text,omitempty"`
	Words           []wordWire    `json:"words,omitempty" yaml:"words,omitempty"`
	ParsingStrategy Strategy      `json:"parsing_strategy,omitempty" yaml:"parsing_strategy,omitempty"`
	Reason          string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Geometries      []segmentWire `json:"geometries,omitempty" yaml:"geometries,omitempty"`
}

func (e Element) wire() elementWire {
	w := elementWire{Type: e.Type, BBox: toBBoxWire(e.BBox)}
	switch e.Type {
	case ElementLine, ElementRect:
		if e.Segment != nil {
			w.GeomType = e.Segment.Type
		}
	case ElementTextBlock:
		if e.Block != nil {
			w.Text = e.Block.Text
			for _, word := range e.Block.Words {
				w.Words = append(w.Words, wordWire{word.Text, word.BBox.X0, word.BBox.X1, word.BBox.Top, word.BBox.Bottom})
			}
		}
	case ElementTable:
		if e.Table != nil {
			w.ParsingStrategy = e.Table.Strategy
			w.Reason = e.Table.Reason
			w.Geometries = make([]segmentWire, 0, len(e.Table.Geometries))
			for _, g := range e.Table.Geometries {
				w.Geometries = append(w.Geometries, toSegmentWire(g))
			}
		}
	}
	return w
}

func (w elementWire) element() (Element, error) {
	bbox := w.BBox.bbox()
	switch w.Type {
	case ElementLine, ElementRect:
		src := SourceLine
		if w.Type == ElementRect {
			src = SourceRect
		}
		gt := w.GeomType
		if gt == "" {
			gt = GeomRect
		}
		seg := segmentWire{bbox.X0, bbox.Top, bbox.X1, bbox.Bottom, gt}.segment(src)
		return Element{Type: w.Type, BBox: bbox, Segment: &seg}, nil
	case ElementTextBlock:
		block := TextBlock{BBox: bbox, Text: w.Text}
		for _, ww := range w.Words {
			block.Words = append(block.Words, TextWord{Text: ww.Text, BBox: geometry.New(ww.X0, ww.Top, ww.X1, ww.Bottom)})
		}
		return Element{Type: w.Type, BBox: bbox, Block: &block}, nil
	case ElementImage:
		return Element{Type: w.Type, BBox: bbox}, nil
	case ElementTable:
		tbl := TableCandidate{BBox: bbox, Strategy: w.ParsingStrategy, Reason: w.Reason}
		for _, g := range w.Geometries {
			tbl.Geometries = append(tbl.Geometries, g.segment(SourceLine))
		}
		return Element{Type: w.Type, BBox: bbox, Table: &tbl}, nil
	}
	return Element{}, fmt.Errorf("%w: unknown element type %q", ErrMalformedInput, w.Type)
}

func (e Element) MarshalJSON() ([]byte, error) { return json.Marshal(e.wire()) }

func (e *Element) UnmarshalJSON(data []byte) error {
	var w elementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	el, err := w.element()
	if err != nil {
		return err
	}
	*e = el
	return nil
}

func (e Element) MarshalYAML() (interface{}, error) { return e.wire(), nil }

func (e *Element) UnmarshalYAML(node *yaml.Node) error {
	var w elementWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	el, err := w.element()
	if err != nil {
		return err
	}
	*e = el
	return nil
}

type pageWire struct {
	PageNumber  int         `json:"page_number" yaml:"page_number"`
	Dimensions  [2]float64  `json:"dimensions" yaml:"dimensions,flow"`
	Orientation Orientation `json:"orientation" yaml:"orientation"`
	Elements    []Element   `json:"elements" yaml:"elements"`
}

func (p PageLayout) wire() pageWire {
	elements := p.Elements
	if elements == nil {
		elements = []Element{}
	}
	return pageWire{p.Number, [2]float64{p.Width, p.Height}, p.Orientation, elements}
}

func (w pageWire) page() PageLayout {
	orientation := w.Orientation
	if orientation == "" {
		orientation = OrientationOf(w.Dimensions[0], w.Dimensions[1])
	}
	return PageLayout{Number: w.PageNumber, Width: w.Dimensions[0], Height: w.Dimensions[1], Orientation: orientation, Elements: w.Elements}
}

func (p PageLayout) MarshalJSON() ([]byte, error) { return json.Marshal(p.wire()) }

func (p *PageLayout) UnmarshalJSON(data []byte) error {
	var w pageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = w.page()
	return nil
}

func (p PageLayout) MarshalYAML() (interface{}, error) { return p.wire(), nil }

func (p *PageLayout) UnmarshalYAML(node *yaml.Node) error {
	var w pageWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*p = w.page()
	return nil
}

type structureMapWire struct {
	PDFPath string       `json:"pdf_path" yaml:"pdf_path"`
	RunID   string       `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Pages   []PageLayout `json:"pages" yaml:"pages"`
}

func (m StructureMap) wire() structureMapWire {
	pages := m.Pages
	if pages == nil {
		pages = []PageLayout{}
	}
	return structureMapWire{m.Source, m.RunID, pages}
}

func (m StructureMap) MarshalJSON() ([]byte, error) { return json.Marshal(m.wire()) }

func (m *StructureMap) UnmarshalJSON(data []byte) error {
	var w structureMapWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = StructureMap{Source: w.PDFPath, RunID: w.RunID, Pages: w.Pages}
	return nil
}

func (m StructureMap) MarshalYAML() (interface{}, error) { return m.wire(), nil }

func (m *StructureMap) UnmarshalYAML(node *yaml.Node) error {
	var w structureMapWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*m = StructureMap{Source: w.PDFPath, RunID: w.RunID, Pages: w.Pages}
	return nil
}
