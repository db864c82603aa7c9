package geometry

import (
	"math"
	"sort"
)

// Eps is the single tolerance used for every coordinate coincidence test:
// intersections, edge coverage, cell adjacency and axis deduplication.
const Eps = 1e-6

type Point struct{ X, Y float64 }

// BBox is (x0, top, x1, bottom) in page space, origin top-left, y down.
type BBox struct{ X0, Top, X1, Bottom float64 }

var Empty = BBox{}

func New(x0, top, x1, bottom float64) BBox {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if bottom < top {
		top, bottom = bottom, top
	}
	return BBox{x0, top, x1, bottom}
}

func (b BBox) Width() float64   { return b.X1 - b.X0 }
func (b BBox) Height() float64  { return b.Bottom - b.Top }
func (b BBox) CenterX() float64 { return (b.X0 + b.X1) / 2 }
func (b BBox) IsEmpty() bool    { return b.X0 >= b.X1 || b.Top >= b.Bottom }

func (b BBox) Area() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Width() * b.Height()
}

// Union returns the smallest box covering both. Degenerate boxes (lines)
// participate like any other box.
func (b BBox) Union(other BBox) BBox {
	return BBox{math.Min(b.X0, other.X0), math.Min(b.Top, other.Top), math.Max(b.X1, other.X1), math.Max(b.Bottom, other.Bottom)}
}

func (b BBox) Intersect(other BBox) BBox {
	result := BBox{math.Max(b.X0, other.X0), math.Max(b.Top, other.Top), math.Min(b.X1, other.X1), math.Min(b.Bottom, other.Bottom)}
	if result.IsEmpty() {
		return Empty
	}
	return result
}

func (b BBox) IntersectArea(other BBox) float64 { return b.Intersect(other).Area() }

// Overlaps reports a strictly positive-area overlap.
func (b BBox) Overlaps(other BBox) bool {
	return math.Max(b.X0, other.X0) < math.Min(b.X1, other.X1) && math.Max(b.Top, other.Top) < math.Min(b.Bottom, other.Bottom)
}

// Touches is the closed-interval counterpart of Overlaps, so that zero-height
// or zero-width segments lying inside a region are found.
func (b BBox) Touches(other BBox) bool {
	return math.Max(b.X0, other.X0) <= math.Min(b.X1, other.X1)+Eps && math.Max(b.Top, other.Top) <= math.Min(b.Bottom, other.Bottom)+Eps
}

// Contains reports whether other lies inside b grown by tol on every side.
func (b BBox) Contains(other BBox, tol float64) bool {
	return other.X0 >= b.X0-tol && other.X1 <= b.X1+tol && other.Top >= b.Top-tol && other.Bottom <= b.Bottom+tol
}

func (b BBox) Expand(m float64) BBox {
	return BBox{b.X0 - m, b.Top - m, b.X1 + m, b.Bottom + m}
}

// Equal compares all four corners within Eps.
func (b BBox) Equal(other BBox) bool {
	return Near(b.X0, other.X0) && Near(b.Top, other.Top) && Near(b.X1, other.X1) && Near(b.Bottom, other.Bottom)
}

// IoU is symmetric, 0 for disjoint or merely touching boxes and 1 for
// identical boxes, degenerate ones included.
func IoU(a, b BBox) float64 {
	if a.Equal(b) {
		return 1
	}
	inter := a.IntersectArea(b)
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func Near(a, b float64) bool { return math.Abs(a-b) <= Eps }

// UniqueSorted sorts values in place and drops entries within Eps of their
// predecessor.
func UniqueSorted(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)
	out := values[:1]
	for _, v := range values[1:] {
		if !Near(v, out[len(out)-1]) {
			out = append(out, v)
		}
	}
	return out
}

func Clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
