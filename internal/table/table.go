// Package table holds tolerant ruling analysis: a region proposer that seeds
// the hybrid detector and a segmenter that cuts a lattice crop into a raw
// grid. Unlike the lattice detector, edges here are snapped and joined with
// page-relative tolerances.
package table

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
)

var Logger = logger.GetLogger("table")

const (
	snapTolRatio   = 0.005
	joinTolRatio   = 0.005
	minCellRatio   = 0.005
	maxCellWRatio  = 0.95
	maxCellHRatio  = 0.20
	splitGapRatio  = 0.10
	rowYTolRatio   = 0.015
	intersectRatio = 0.0015
	coordScale     = 1000.0
)

type Edge struct {
	X0, Y0, X1, Y1 float64
	Orientation    byte
}

type Row struct {
	BBox  geometry.BBox
	Cells []geometry.BBox
}

type Table struct {
	BBox geometry.BBox
	Rows []Row
}

func coordToInt(x float64) int { return int(x*coordScale + 0.5) }

// edgesFrom splits page segments into horizontal and vertical edges. Plain
// rectangles contribute their four sides; virtual separators are ignored.
func edgesFrom(segs []models.Segment) (h, v []Edge) {
	for _, s := range segs {
		b := s.BBox
		switch {
		case s.Source == models.SourceVirtual:
		case s.Type == models.GeomRect:
			h = append(h, Edge{b.X0, b.Top, b.X1, b.Top, 'h'}, Edge{b.X0, b.Bottom, b.X1, b.Bottom, 'h'})
			v = append(v, Edge{b.X0, b.Top, b.X0, b.Bottom, 'v'}, Edge{b.X1, b.Top, b.X1, b.Bottom, 'v'})
		case s.Type == models.GeomHorizontal:
			y := (b.Top + b.Bottom) / 2
			h = append(h, Edge{b.X0, y, b.X1, y, 'h'})
		case s.Type == models.GeomVertical:
			x := (b.X0 + b.X1) / 2
			v = append(v, Edge{x, b.Top, x, b.Bottom, 'v'})
		}
	}
	return h, v
}

func hasEdge(edges []Edge, x0, y0, x1, y1, eps float64) bool {
	for _, e := range edges {
		if e.Orientation == 'h' {
			if math.Abs(e.Y0-y0) < eps && math.Abs(e.Y1-y1) < eps &&
				e.X0-eps <= math.Min(x0, x1) && e.X1+eps >= math.Max(x0, x1) {
				return true
			}
		} else {
			if math.Abs(e.X0-x0) < eps && math.Abs(e.X1-x1) < eps &&
				e.Y0-eps <= math.Min(y0, y1) && e.Y1+eps >= math.Max(y0, y1) {
				return true
			}
		}
	}
	return false
}

// mergeEdges snaps edges whose positions differ by at most snapTol onto their
// mean and joins collinear pieces separated by at most joinTol.
func mergeEdges(edges []Edge, snapTol, joinTol float64) []Edge {
	if len(edges) == 0 {
		return nil
	}
	edges = append([]Edge(nil), edges...)
	orientation := edges[0].Orientation
	pos := func(e Edge) float64 {
		if orientation == 'v' {
			return e.X0
		}
		return e.Y0
	}
	start := func(e Edge) float64 {
		if orientation == 'v' {
			return e.Y0
		}
		return e.X0
	}
	sort.Slice(edges, func(i, j int) bool {
		if pos(edges[i]) != pos(edges[j]) {
			return pos(edges[i]) < pos(edges[j])
		}
		return start(edges[i]) < start(edges[j])
	})
	var result []Edge
	snapInt, joinInt := coordToInt(snapTol), coordToInt(joinTol)
	for i := 0; i < len(edges); {
		posSum := coordToInt(pos(edges[i]))
		count := 1
		first := i
		i++
		for i < len(edges) {
			nextPos := coordToInt(pos(edges[i]))
			if int(math.Abs(float64(nextPos-posSum/count))) > snapInt {
				break
			}
			posSum += nextPos
			count++
			i++
		}
		snapped := float64(posSum/count) / coordScale
		group := make([]Edge, 0, i-first)
		for _, e := range edges[first:i] {
			if orientation == 'h' {
				e.Y0, e.Y1 = snapped, snapped
			} else {
				e.X0, e.X1 = snapped, snapped
			}
			group = append(group, e)
		}
		sort.Slice(group, func(a, b int) bool { return start(group[a]) < start(group[b]) })
		joined := group[0]
		for _, next := range group[1:] {
			if orientation == 'h' {
				if coordToInt(next.X0)-coordToInt(joined.X1) <= joinInt {
					joined.X1 = math.Max(joined.X1, next.X1)
					continue
				}
			} else if coordToInt(next.Y0)-coordToInt(joined.Y1) <= joinInt {
				joined.Y1 = math.Max(joined.Y1, next.Y1)
				continue
			}
			result = append(result, joined)
			joined = next
		}
		result = append(result, joined)
	}
	return result
}

func findIntersections(vEdges, hEdges []Edge, tr *rtree.RTreeG[geometry.Point], eps float64) {
	tolInt := coordToInt(eps)
	for _, v := range vEdges {
		vXInt, vY0Int, vY1Int := coordToInt(v.X0), coordToInt(v.Y0), coordToInt(v.Y1)
		for _, h := range hEdges {
			hYInt := coordToInt(h.Y0)
			if hYInt < vY0Int-tolInt || hYInt > vY1Int+tolInt {
				continue
			}
			hX0Int, hX1Int := coordToInt(h.X0), coordToInt(h.X1)
			if hX0Int-tolInt > vXInt || hX1Int+tolInt < vXInt {
				continue
			}
			p := geometry.Point{X: v.X0, Y: h.Y0}
			exists := false
			tr.Search([2]float64{p.X - 0.1, p.Y - 0.1}, [2]float64{p.X + 0.1, p.Y + 0.1}, func(_, _ [2]float64, _ geometry.Point) bool {
				exists = true
				return false
			})
			if !exists {
				tr.Insert([2]float64{p.X, p.Y}, [2]float64{p.X, p.Y}, p)
			}
		}
	}
}

func findCells(points []geometry.Point, tr *rtree.RTreeG[geometry.Point], page geometry.BBox, hEdges, vEdges []Edge) []geometry.BBox {
	if len(points) < 4 {
		return nil
	}
	pw, ph := page.Width(), page.Height()
	diag := math.Sqrt(pw*pw + ph*ph)
	minSize, maxW, maxH := math.Min(pw, ph)*minCellRatio, pw*maxCellWRatio, ph*maxCellHRatio
	snapDist, eps := pw*snapTolRatio, diag*intersectRatio
	sorted := append([]geometry.Point(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		if dy := sorted[i].Y - sorted[j].Y; math.Abs(dy) > 0.1 {
			return dy < 0
		}
		return sorted[i].X < sorted[j].X
	})
	var snapped []geometry.Point
	for _, p := range sorted {
		merged := false
		for i := range snapped {
			if math.Abs(p.X-snapped[i].X) < snapDist && math.Abs(p.Y-snapped[i].Y) < snapDist {
				snapped[i].X, snapped[i].Y = (snapped[i].X+p.X)/2, (snapped[i].Y+p.Y)/2
				merged = true
				break
			}
		}
		if !merged {
			snapped = append(snapped, p)
		}
	}
	var cells []geometry.BBox
	for i, p1 := range snapped {
		for j := i + 1; j < len(snapped); j++ {
			if snapped[j].Y-p1.Y > eps {
				break
			}
			p2 := snapped[j]
			if p2.X <= p1.X+minSize || !hasEdge(hEdges, p1.X, p1.Y, p2.X, p2.Y, eps) {
				continue
			}
			for _, p3 := range snapped {
				if p3.Y <= p1.Y+minSize || math.Abs(p3.X-p1.X) > eps || !hasEdge(vEdges, p1.X, p1.Y, p3.X, p3.Y, eps) {
					continue
				}
				found := false
				tr.Search([2]float64{p2.X - eps, p3.Y - eps}, [2]float64{p2.X + eps, p3.Y + eps}, func(_, _ [2]float64, _ geometry.Point) bool {
					if hasEdge(vEdges, p2.X, p2.Y, p2.X, p3.Y, eps) && hasEdge(hEdges, p3.X, p3.Y, p2.X, p3.Y, eps) {
						found = true
						return false
					}
					return true
				})
				if !found {
					continue
				}
				cell := geometry.BBox{X0: p1.X, Top: p1.Y, X1: p2.X, Bottom: p3.Y}
				if w, h := cell.Width(), cell.Height(); w > minSize && w < maxW && h > minSize && h < maxH {
					cells = append(cells, cell)
				}
				// the nearest closing row is the cell; farther ones span merged rows
				break
			}
		}
	}
	return cells
}

func deduplicateCells(cells []geometry.BBox) []geometry.BBox {
	if len(cells) <= 1 {
		return cells
	}
	keep := make([]bool, len(cells))
	for i := range keep {
		keep[i] = true
	}
	for i := 0; i < len(cells); i++ {
		if !keep[i] {
			continue
		}
		areaI := cells[i].Area()
		for j := i + 1; j < len(cells); j++ {
			if !keep[j] {
				continue
			}
			areaJ, inter := cells[j].Area(), cells[i].IntersectArea(cells[j])
			if inter == 0 {
				continue
			}
			if contain := inter / math.Min(areaI, areaJ); contain > 0.9 {
				if areaI >= areaJ {
					keep[i] = false
					break
				}
				keep[j] = false
			} else if iou := inter / (areaI + areaJ - inter); iou > 0.6 {
				if areaI >= areaJ {
					keep[j] = false
				} else {
					keep[i] = false
					break
				}
			}
		}
	}
	result := make([]geometry.BBox, 0, len(cells))
	for i, k := range keep {
		if k {
			result = append(result, cells[i])
		}
	}
	return result
}

// groupCellsIntoTables bands cells into rows and starts a new table wherever
// the vertical gap between rows exceeds a tenth of the page height.
func groupCellsIntoTables(cells []geometry.BBox, page geometry.BBox) []Table {
	if len(cells) == 0 {
		return nil
	}
	splitGap := page.Height() * splitGapRatio
	var avgH float64
	for _, c := range cells {
		avgH += c.Height()
	}
	avgH /= float64(len(cells))
	sortTol := avgH * 0.2
	sort.Slice(cells, func(i, j int) bool {
		if dy := cells[i].Top - cells[j].Top; math.Abs(dy) > sortTol {
			return dy < 0
		}
		return cells[i].X0 < cells[j].X0
	})
	var tables []Table
	var cur *Table
	prevBottom := -1000.0
	yTol := page.Height() * rowYTolRatio
	for i := 0; i < len(cells); {
		rowTop := cells[i].Top
		j := i + 1
		for j < len(cells) && math.Abs(cells[j].Top-rowTop) <= yTol {
			j++
		}
		if cur == nil || rowTop-prevBottom > splitGap {
			tables = append(tables, Table{BBox: cells[i]})
			cur = &tables[len(tables)-1]
		}
		rowCells := append([]geometry.BBox(nil), cells[i:j]...)
		sort.Slice(rowCells, func(a, b int) bool { return rowCells[a].X0 < rowCells[b].X0 })
		row := Row{Cells: rowCells, BBox: rowCells[0]}
		for _, c := range rowCells[1:] {
			row.BBox = row.BBox.Union(c)
		}
		cur.BBox = cur.BBox.Union(row.BBox)
		cur.Rows = append(cur.Rows, row)
		prevBottom = math.Max(prevBottom, row.BBox.Bottom)
		i = j
	}
	return filterValid(tables, page)
}

func filterValid(tables []Table, page geometry.BBox) []Table {
	valid := tables[:0]
	for _, t := range tables {
		maxCols := 0
		for _, r := range t.Rows {
			maxCols = max(maxCols, len(r.Cells))
		}
		if len(t.Rows) < 2 || maxCols < 2 {
			Logger.Debug("table rejected: too few rows/cols", "rows", len(t.Rows), "cols", maxCols)
			continue
		}
		hRatio, wRatio := t.BBox.Height()/page.Height(), t.BBox.Width()/page.Width()
		if hRatio > 0.95 || wRatio > 0.98 {
			Logger.Debug("table rejected: too large", "hRatio", hRatio, "wRatio", wRatio)
			continue
		}
		valid = append(valid, t)
	}
	return valid
}

// detectTables runs the tolerant pipeline over a page's segments.
func detectTables(segs []models.Segment, page geometry.BBox) []Table {
	hEdges, vEdges := edgesFrom(segs)
	pw, ph := page.Width(), page.Height()
	if pw <= 0 || ph <= 0 {
		return nil
	}
	hEdges = mergeEdges(hEdges, pw*snapTolRatio, pw*joinTolRatio)
	vEdges = mergeEdges(vEdges, pw*snapTolRatio, pw*joinTolRatio)
	if len(hEdges) < 2 || len(vEdges) < 2 {
		return nil
	}
	eps := math.Sqrt(pw*pw+ph*ph) * intersectRatio
	var tr rtree.RTreeG[geometry.Point]
	findIntersections(vEdges, hEdges, &tr, eps)
	var points []geometry.Point
	tr.Scan(func(_, _ [2]float64, value geometry.Point) bool {
		points = append(points, value)
		return true
	})
	if len(points) < 4 {
		return nil
	}
	cells := findCells(points, &tr, page, hEdges, vEdges)
	var valid []geometry.BBox
	for _, cell := range cells {
		if cell = cell.Intersect(page); !cell.IsEmpty() {
			valid = append(valid, cell)
		}
	}
	valid = deduplicateCells(valid)
	Logger.Debug("tolerant ruling analysis", "hEdges", len(hEdges), "vEdges", len(vEdges), "points", len(points), "cells", len(valid))
	return groupCellsIntoTables(valid, page)
}
