package extractor

import (
	"fmt"
	"sort"

	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
)

const (
	textOnlyRowGap = 5.0
	edgeSnap       = 5.0
)

func placeTextOnly(page *normalize.Page, cand models.TableCandidate) (placement, error) {
	bounds := Boundaries(cand)
	if len(bounds) < 2 {
		return placement{}, fmt.Errorf("%w: no column boundaries in text table at %v", models.ErrNoGrid, cand.BBox)
	}
	rows := tableRows(page.Blocks, cand, textOnlyRowGap)
	if len(rows) == 0 {
		return placement{}, fmt.Errorf("%w: text table at %v", ErrEmptyRegion, cand.BBox)
	}

	var p placement
	for _, row := range rows {
		cells := make([]string, len(bounds)-1)
		for _, w := range row {
			col := columnOf(bounds, w.BBox.CenterX())
			if col < 0 || col >= len(cells) {
				p.unplaced = append(p.unplaced, w)
				continue
			}
			cells[col] = appendCell(cells[col], w.Text)
		}
		p.grid = append(p.grid, cells)
	}
	return p, nil
}

// Boundaries returns the sorted x positions delimiting a text table's
// columns: its virtual separators, plus the bbox edges when the outermost
// separators are more than 5 units inside them.
func Boundaries(cand models.TableCandidate) []float64 {
	var xs []float64
	for _, g := range cand.Geometries {
		if g.Type == models.GeomVirtual && g.IsVertical() {
			xs = append(xs, g.BBox.X0)
		}
	}
	if len(xs) == 0 {
		return []float64{cand.BBox.X0, cand.BBox.X1}
	}
	sort.Float64s(xs)
	if xs[0] > cand.BBox.X0+edgeSnap {
		xs = append([]float64{cand.BBox.X0}, xs...)
	}
	if xs[len(xs)-1] < cand.BBox.X1-edgeSnap {
		xs = append(xs, cand.BBox.X1)
	}
	return xs
}

// columnOf counts the boundaries after the first that lie at or left of x.
// Centres left of the first boundary give -1 and centres at or past the last
// give len(bounds)-1; both lie outside every column.
func columnOf(bounds []float64, x float64) int {
	if x < bounds[0] {
		return -1
	}
	col := 0
	for _, b := range bounds[1:] {
		if x < b {
			break
		}
		col++
	}
	return col
}
