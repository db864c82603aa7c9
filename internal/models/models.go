package models

import (
	"sort"

	"github.com/tablemap/tablemap/internal/geometry"
)

type GeomType string

const (
	GeomHorizontal GeomType = "line_horizontal"
	GeomVertical   GeomType = "line_vertical"
	GeomRect       GeomType = "rect"
	GeomVirtual    GeomType = "virtual_line"
)

type SourceKind string

const (
	SourceLine    SourceKind = "line"
	SourceRect    SourceKind = "rect"
	SourceVirtual SourceKind = "virtual"
)

// Segment is a classified line or rectangle primitive.
type Segment struct {
	BBox   geometry.BBox
	Type   GeomType
	Source SourceKind
}

func (s Segment) IsHorizontal() bool { return s.Type == GeomHorizontal }

func (s Segment) IsVertical() bool {
	return s.Type == GeomVertical || (s.Type == GeomVirtual && geometry.Near(s.BBox.X0, s.BBox.X1))
}

// HorizontalLike also admits wide thin rectangles that were not reclassified.
func (s Segment) HorizontalLike() bool {
	w, h := s.BBox.Width(), s.BBox.Height()
	return s.IsHorizontal() || geometry.Near(s.BBox.Top, s.BBox.Bottom) || (w > h && w > 5)
}

// VerticalLike also admits tall narrow rectangles that were not reclassified.
func (s Segment) VerticalLike() bool {
	w, h := s.BBox.Width(), s.BBox.Height()
	return s.IsVertical() || geometry.Near(s.BBox.X0, s.BBox.X1) || (h > w && w < 5)
}

type TextWord struct {
	Text string
	BBox geometry.BBox
}

// TextBlock is one clustered text line whose Words are the merged runs.
type TextBlock struct {
	BBox  geometry.BBox
	Text  string
	Words []TextWord
}

type Strategy string

const (
	StrategyLattice  Strategy = "lattice"
	StrategyStream   Strategy = "stream"
	StrategyTextOnly Strategy = "text_only"
)

// TableCandidate is immutable once built; detectors return fresh values.
type TableCandidate struct {
	BBox       geometry.BBox
	Strategy   Strategy
	Geometries []Segment
	Reason     string
}

type ElementType string

const (
	ElementLine      ElementType = "line"
	ElementRect      ElementType = "rect"
	ElementTextBlock ElementType = "text_block"
	ElementImage     ElementType = "image"
	ElementTable     ElementType = "table"
)

// Element is a tagged variant: exactly one of Segment, Block or Table is set
// according to Type (images carry only BBox).
type Element struct {
	Type    ElementType
	BBox    geometry.BBox
	Segment *Segment
	Block   *TextBlock
	Table   *TableCandidate
}

func SegmentElement(s Segment) Element {
	t := ElementLine
	if s.Source == SourceRect {
		t = ElementRect
	}
	return Element{Type: t, BBox: s.BBox, Segment: &s}
}

func BlockElement(b TextBlock) Element { return Element{Type: ElementTextBlock, BBox: b.BBox, Block: &b} }
func ImageElement(b geometry.BBox) Element {
	return Element{Type: ElementImage, BBox: b}
}
func TableElement(t TableCandidate) Element {
	return Element{Type: ElementTable, BBox: t.BBox, Table: &t}
}

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

func OrientationOf(width, height float64) Orientation {
	if width <= height {
		return Portrait
	}
	return Landscape
}

type PageLayout struct {
	Number      int
	Width       float64
	Height      float64
	Orientation Orientation
	Elements    []Element
}

// SortElements orders elements by top coordinate, keeping insertion order on ties.
func (p *PageLayout) SortElements() {
	sort.SliceStable(p.Elements, func(i, j int) bool { return p.Elements[i].BBox.Top < p.Elements[j].BBox.Top })
}

func (p *PageLayout) Tables() []TableCandidate {
	var out []TableCandidate
	for _, el := range p.Elements {
		if el.Type == ElementTable && el.Table != nil {
			out = append(out, *el.Table)
		}
	}
	return out
}

func (p *PageLayout) TextBlocks() []TextBlock {
	var out []TextBlock
	for _, el := range p.Elements {
		if el.Type == ElementTextBlock && el.Block != nil {
			out = append(out, *el.Block)
		}
	}
	return out
}

type StructureMap struct {
	Source string
	RunID  string
	Pages  []PageLayout
}

// ExtractedTable is a materialised grid; only the stitcher changes it after
// placement.
type ExtractedTable struct {
	Pages       []int
	TableIndex  int
	Strategy    Strategy
	BBox        geometry.BBox
	Grid        [][]string
	Orientation Orientation
	Merged      bool
	Unplaced    []TextWord
}

func (t ExtractedTable) Page() int {
	if len(t.Pages) == 0 {
		return 0
	}
	return t.Pages[0]
}

func (t ExtractedTable) ColumnCount() int {
	n := 0
	for _, row := range t.Grid {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

// CloneGrid copies rows so callers can append without aliasing.
func CloneGrid(grid [][]string) [][]string {
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out
}
