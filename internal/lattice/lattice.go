// Package lattice finds tables from ruling-line geometry alone: closed cells
// between exact line intersections, grouped into connected components.
package lattice

import (
	"fmt"

	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
)

var Logger = logger.GetLogger("lattice")

const (
	minCellSize      = 1.0
	minCoveredEdges  = 3
	minTableCells    = 2
	acceptCells      = 4
	duplicateOverlap = 0.5
	borderSnap       = 5.0
)

// Cell is the closed region between two adjacent x axes and two adjacent y
// axes. Col and Row index those axes.
type Cell struct {
	BBox     geometry.BBox
	Col, Row int
}

// Table is a connected component of cells.
type Table struct {
	Cells []Cell
	BBox  geometry.BBox
}

// Detect runs closed-cell analysis on one page.
func Detect(page *normalize.Page) ([]models.TableCandidate, error) {
	h, v := page.Horizontal(), page.Vertical()
	if len(h) < 2 || len(v) < 2 {
		return nil, fmt.Errorf("%w: %d horizontal, %d vertical lines", models.ErrInsufficientGeometry, len(h), len(v))
	}
	points := Intersections(h, v)
	if len(points) < 4 {
		return nil, fmt.Errorf("%w: %d intersections", models.ErrInsufficientGeometry, len(points))
	}
	cells := FindCells(points, h, v)
	tables := GroupCells(cells)
	Logger.Debug("cells found", "page", page.Number, "intersections", len(points), "cells", len(cells), "groups", len(tables))

	var accepted []models.TableCandidate
	for _, tbl := range tables {
		bbox := expand(tbl.BBox, h, v)
		if dup := duplicateOf(bbox, accepted); dup >= 0 {
			Logger.Debug("dropping duplicate table", "page", page.Number, "bbox", bbox, "of", dup)
			continue
		}
		if len(tbl.Cells) < acceptCells && !containsText(bbox, page.Blocks) {
			Logger.Debug("dropping table without text", "page", page.Number, "cells", len(tbl.Cells))
			continue
		}
		bbox = bbox.Intersect(page.Bounds())
		if bbox.IsEmpty() {
			continue
		}
		accepted = append(accepted, models.TableCandidate{
			BBox:       bbox,
			Strategy:   models.StrategyLattice,
			Geometries: touching(bbox, h, v),
			Reason:     fmt.Sprintf("Found by lattice analysis (%d cells)", len(tbl.Cells)),
		})
	}
	return accepted, nil
}

// Intersections returns every point where a vertical segment's x lies on a
// horizontal segment's span and the horizontal's y lies on the vertical's
// span, within geometry.Eps. Duplicates are removed.
func Intersections(h, v []models.Segment) []geometry.Point {
	var points []geometry.Point
	for _, hs := range h {
		y := hs.BBox.Top
		for _, vs := range v {
			x := vs.BBox.X0
			if x < hs.BBox.X0-geometry.Eps || x > hs.BBox.X1+geometry.Eps {
				continue
			}
			if y < vs.BBox.Top-geometry.Eps || y > vs.BBox.Bottom+geometry.Eps {
				continue
			}
			if !containsPoint(points, x, y) {
				points = append(points, geometry.Point{X: x, Y: y})
			}
		}
	}
	return points
}

func containsPoint(points []geometry.Point, x, y float64) bool {
	for _, p := range points {
		if geometry.Near(p.X, x) && geometry.Near(p.Y, y) {
			return true
		}
	}
	return false
}

// FindCells builds the axis grid from the intersection points and keeps each
// grid rectangle with at least three edges covered end to end.
func FindCells(points []geometry.Point, h, v []models.Segment) []Cell {
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	xs, ys = geometry.UniqueSorted(xs), geometry.UniqueSorted(ys)

	var cells []Cell
	for r := 0; r+1 < len(ys); r++ {
		for c := 0; c+1 < len(xs); c++ {
			box := geometry.BBox{X0: xs[c], Top: ys[r], X1: xs[c+1], Bottom: ys[r+1]}
			if box.Width() < minCellSize || box.Height() < minCellSize {
				continue
			}
			if CoveredEdges(box, h, v) >= minCoveredEdges {
				cells = append(cells, Cell{BBox: box, Col: c, Row: r})
			}
		}
	}
	return cells
}

// CoveredEdges counts the sides of box lying entirely on one segment.
func CoveredEdges(box geometry.BBox, h, v []models.Segment) int {
	n := 0
	for _, y := range []float64{box.Top, box.Bottom} {
		if coveredH(y, box.X0, box.X1, h) {
			n++
		}
	}
	for _, x := range []float64{box.X0, box.X1} {
		if coveredV(x, box.Top, box.Bottom, v) {
			n++
		}
	}
	return n
}

func coveredH(y, x0, x1 float64, h []models.Segment) bool {
	for _, s := range h {
		if geometry.Near(s.BBox.Top, y) && s.BBox.X0 <= x0+geometry.Eps && s.BBox.X1 >= x1-geometry.Eps {
			return true
		}
	}
	return false
}

func coveredV(x, top, bottom float64, v []models.Segment) bool {
	for _, s := range v {
		if geometry.Near(s.BBox.X0, x) && s.BBox.Top <= top+geometry.Eps && s.BBox.Bottom >= bottom-geometry.Eps {
			return true
		}
	}
	return false
}

// GroupCells joins cells sharing an edge or a corner. Cells sit on a common
// axis grid, so that is exactly the 8-neighbourhood of their axis indices.
// Components with fewer than two cells are dropped; the rest come out in the
// order of their first cell.
func GroupCells(cells []Cell) []Table {
	if len(cells) == 0 {
		return nil
	}
	type key struct{ c, r int }
	index := make(map[key]int, len(cells))
	for i, c := range cells {
		index[key{c.Col, c.Row}] = i
	}
	ds := newDisjointSet(len(cells))
	for i, c := range cells {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				if j, ok := index[key{c.Col + dc, c.Row + dr}]; ok {
					ds.union(i, j)
				}
			}
		}
	}

	slot := make(map[int]int)
	var tables []Table
	for i, c := range cells {
		root := ds.find(i)
		k, ok := slot[root]
		if !ok {
			k = len(tables)
			slot[root] = k
			tables = append(tables, Table{BBox: c.BBox})
		}
		tables[k].Cells = append(tables[k].Cells, c)
		tables[k].BBox = tables[k].BBox.Union(c.BBox)
	}
	out := tables[:0]
	for _, t := range tables {
		if len(t.Cells) >= minTableCells {
			out = append(out, t)
		}
	}
	return out
}

// expand first absorbs lines crossing the cell union (horizontal lines widen
// it, vertical lines lengthen it) and then lines within borderSnap of a border.
func expand(b geometry.BBox, h, v []models.Segment) geometry.BBox {
	out := b
	for _, s := range h {
		y := s.BBox.Top
		if y >= b.Top-geometry.Eps && y <= b.Bottom+geometry.Eps && spansOverlap(s.BBox.X0, s.BBox.X1, b.X0, b.X1) {
			out.X0, out.X1 = min(out.X0, s.BBox.X0), max(out.X1, s.BBox.X1)
		}
	}
	for _, s := range v {
		x := s.BBox.X0
		if x >= b.X0-geometry.Eps && x <= b.X1+geometry.Eps && spansOverlap(s.BBox.Top, s.BBox.Bottom, b.Top, b.Bottom) {
			out.Top, out.Bottom = min(out.Top, s.BBox.Top), max(out.Bottom, s.BBox.Bottom)
		}
	}

	b = out
	for _, s := range h {
		y := s.BBox.Top
		if (near(y, b.Top) || near(y, b.Bottom)) && spansOverlap(s.BBox.X0, s.BBox.X1, b.X0, b.X1) {
			out = out.Union(s.BBox)
		}
	}
	for _, s := range v {
		x := s.BBox.X0
		if (near(x, b.X0) || near(x, b.X1)) && spansOverlap(s.BBox.Top, s.BBox.Bottom, b.Top, b.Bottom) {
			out = out.Union(s.BBox)
		}
	}
	return out
}

func near(a, b float64) bool {
	d := a - b
	return d <= borderSnap && d >= -borderSnap
}

func spansOverlap(a0, a1, b0, b1 float64) bool {
	return max(a0, b0) <= min(a1, b1)+geometry.Eps
}

func duplicateOf(b geometry.BBox, accepted []models.TableCandidate) int {
	for i, t := range accepted {
		smaller := min(b.Area(), t.BBox.Area())
		if smaller > 0 && b.IntersectArea(t.BBox) > duplicateOverlap*smaller {
			return i
		}
	}
	return -1
}

func containsText(b geometry.BBox, blocks []models.TextBlock) bool {
	for _, blk := range blocks {
		if b.Overlaps(blk.BBox) {
			return true
		}
	}
	return false
}

func touching(b geometry.BBox, h, v []models.Segment) []models.Segment {
	var out []models.Segment
	for _, group := range [][]models.Segment{h, v} {
		for _, s := range group {
			if b.Touches(s.BBox) {
				out = append(out, s)
			}
		}
	}
	return out
}
