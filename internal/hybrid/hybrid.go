// Package hybrid is the fallback geometric detector. It takes raw regions from
// a Proposer, classifies each as lattice or stream by its vertical rulings and
// grows its bbox from nearby lines and text.
package hybrid

import (
	"fmt"
	"math"
	"sort"

	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
)

var Logger = logger.GetLogger("hybrid")

const (
	minVerticals      = 2
	latticeMargin     = 10.0
	streamMarginX     = 50.0
	streamMarginY     = 10.0
	spannerFactor     = 1.8
	lineCoverageRatio = 0.7
	minModalCount     = 2
)

// Proposer seeds candidate table regions for a page.
type Proposer interface {
	Propose(page *normalize.Page) []geometry.BBox
}

type candidate struct {
	bbox     geometry.BBox
	strategy models.Strategy
}

// Detect classifies, expands, merges and validates the proposer's regions.
// Callers run it only when the lattice detector found nothing.
func Detect(page *normalize.Page, p Proposer) ([]models.TableCandidate, error) {
	if p == nil {
		return nil, nil
	}
	proposals := p.Propose(page)
	if len(proposals) == 0 {
		return nil, fmt.Errorf("%w: no proposed regions", models.ErrInsufficientGeometry)
	}

	cands := make([]candidate, 0, len(proposals))
	for _, prop := range proposals {
		c := candidate{bbox: prop, strategy: Classify(prop, page.Segments)}
		switch c.strategy {
		case models.StrategyLattice:
			c.bbox = expandLattice(prop, page.Segments)
		default:
			c.bbox = expandStream(prop, page.Segments, page.Blocks)
		}
		Logger.Debug("proposal expanded", "page", page.Number, "strategy", c.strategy, "from", prop, "to", c.bbox)
		cands = append(cands, c)
	}

	var out []models.TableCandidate
	bounds := page.Bounds()
	for _, c := range mergeOverlapping(cands) {
		geoms := touching(c.bbox, page.Segments)
		if len(geoms) == 0 || !bounds.Contains(c.bbox, geometry.Eps) {
			Logger.Debug("candidate rejected", "page", page.Number, "bbox", c.bbox, "geoms", len(geoms))
			continue
		}
		var h, v int
		for _, g := range geoms {
			if countsHorizontal(g) {
				h++
			}
			if countsVertical(g) {
				v++
			}
		}
		out = append(out, models.TableCandidate{
			BBox:       c.bbox,
			Strategy:   c.strategy,
			Geometries: geoms,
			Reason:     fmt.Sprintf("Found by geometric analysis (%dh/%dv geoms)", h, v),
		})
	}
	return out, nil
}

// Classify counts vertical-like segments strictly inside the region: two or
// more make it a lattice table.
func Classify(region geometry.BBox, segs []models.Segment) models.Strategy {
	n := 0
	for _, s := range segs {
		if s.Source != models.SourceVirtual && s.VerticalLike() && strictlyInside(region, s.BBox) {
			n++
		}
	}
	if n >= minVerticals {
		return models.StrategyLattice
	}
	return models.StrategyStream
}

// strictlyInside requires the segment's x inside the region's open x-range
// and a positive-length vertical overlap with it. Segments on the border or
// meeting only a corner do not count.
func strictlyInside(region, seg geometry.BBox) bool {
	x := seg.CenterX()
	if x <= region.X0+geometry.Eps || x >= region.X1-geometry.Eps {
		return false
	}
	return min(region.Bottom, seg.Bottom)-max(region.Top, seg.Top) > geometry.Eps
}

func expandLattice(b geometry.BBox, segs []models.Segment) geometry.BBox {
	search := b.Expand(latticeMargin)
	out := b
	for _, s := range segs {
		if search.Touches(s.BBox) {
			out = out.Union(s.BBox)
		}
	}
	return out
}

// expandStream keeps the region's vertical span and picks left and right
// edges from horizontal rulings, cross-checked against text extents.
func expandStream(b geometry.BBox, segs []models.Segment, blocks []models.TextBlock) geometry.BBox {
	search := geometry.BBox{X0: b.X0 - streamMarginX, Top: b.Top - streamMarginY, X1: b.X1 + streamMarginX, Bottom: b.Bottom + streamMarginY}
	var x0s, x1s []float64
	for _, s := range segs {
		if s.Source != models.SourceVirtual && s.HorizontalLike() && search.Touches(s.BBox) {
			x0s = append(x0s, s.BBox.X0)
			x1s = append(x1s, s.BBox.X1)
		}
	}
	haveLines := len(x0s) > 0
	lineX0, lineX1 := b.X0, b.X1
	if haveLines {
		lineX0 = modalOr(x0s, math.Min)
		lineX1 = modalOr(x1s, math.Max)
	}

	textX0, textX1 := textExtent(b, blocks)
	textW, lineW := textX1-textX0, lineX1-lineX0
	if haveLines && (textW == 0 || lineW >= lineCoverageRatio*textW) {
		return geometry.BBox{X0: lineX0, Top: b.Top, X1: lineX1, Bottom: b.Bottom}
	}
	return geometry.BBox{X0: math.Min(lineX0, textX0), Top: b.Top, X1: math.Max(lineX1, textX1), Bottom: b.Bottom}
}

// textExtent spans the blocks overlapping b's vertical range. Spanning blocks,
// wider than 1.8 times the average, are left out unless nothing else remains.
func textExtent(b geometry.BBox, blocks []models.TextBlock) (float64, float64) {
	var slice []geometry.BBox
	var total float64
	for _, blk := range blocks {
		if math.Max(b.Top, blk.BBox.Top) < math.Min(b.Bottom, blk.BBox.Bottom) {
			slice = append(slice, blk.BBox)
			total += blk.BBox.Width()
		}
	}
	if len(slice) == 0 {
		return b.X0, b.X1
	}
	avg := total / float64(len(slice))
	x0, x1 := math.Inf(1), math.Inf(-1)
	for _, s := range slice {
		if s.Width() > avg*spannerFactor {
			continue
		}
		x0, x1 = math.Min(x0, s.X0), math.Max(x1, s.X1)
	}
	if math.IsInf(x0, 1) {
		for _, s := range slice {
			x0, x1 = math.Min(x0, s.X0), math.Max(x1, s.X1)
		}
	}
	return x0, x1
}

// modalOr returns the most frequent value rounded to 0.1 when it occurs at
// least twice, first seen winning ties; otherwise it folds values with pick.
func modalOr(values []float64, pick func(a, b float64) float64) float64 {
	counts := make(map[float64]int, len(values))
	var order []float64
	for _, v := range values {
		r := math.Round(v*10) / 10
		if counts[r] == 0 {
			order = append(order, r)
		}
		counts[r]++
	}
	best, bestN := 0.0, 0
	for _, r := range order {
		if counts[r] > bestN {
			best, bestN = r, counts[r]
		}
	}
	if bestN >= minModalCount {
		return best
	}
	out := values[0]
	for _, v := range values[1:] {
		out = pick(out, v)
	}
	return out
}

// mergeOverlapping sorts by (top, x0) and folds each candidate into its
// predecessor when they overlap; lattice wins over stream.
func mergeOverlapping(cands []candidate) []candidate {
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].bbox.Top != cands[j].bbox.Top {
			return cands[i].bbox.Top < cands[j].bbox.Top
		}
		return cands[i].bbox.X0 < cands[j].bbox.X0
	})
	var out []candidate
	cur := cands[0]
	for _, next := range cands[1:] {
		if cur.bbox.Overlaps(next.bbox) {
			cur.bbox = cur.bbox.Union(next.bbox)
			if next.strategy == models.StrategyLattice {
				cur.strategy = models.StrategyLattice
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

func touching(b geometry.BBox, segs []models.Segment) []models.Segment {
	var out []models.Segment
	for _, s := range segs {
		if s.Source != models.SourceVirtual && b.Touches(s.BBox) {
			out = append(out, s)
		}
	}
	return out
}

func countsHorizontal(s models.Segment) bool {
	return s.IsHorizontal() || geometry.Near(s.BBox.Top, s.BBox.Bottom) || s.BBox.Width() > s.BBox.Height()
}

func countsVertical(s models.Segment) bool {
	return s.IsVertical() || geometry.Near(s.BBox.X0, s.BBox.X1) || s.BBox.Height() > s.BBox.Width()
}
