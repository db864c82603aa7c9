package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/rtree"

	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/models"
)

const axisMergeTol = 2.0

// Segmenter cuts a crop into the grid formed by the rulings inside it. A
// merged cell shows up as content in one of the columns it spans with the
// others left empty.
type Segmenter struct{}

// Segment returns rows of cell text for crop. Words are placed by their
// centre; words whose centre falls outside the ruled area come back unplaced.
func (Segmenter) Segment(segs []models.Segment, crop geometry.BBox, words []models.TextWord) ([][]string, []models.TextWord, error) {
	hEdges, vEdges := edgesFrom(segs)
	var index rtree.RTreeG[Edge]
	for _, e := range append(hEdges, vEdges...) {
		index.Insert([2]float64{e.X0, e.Y0}, [2]float64{e.X1, e.Y1}, e)
	}
	region := crop.Expand(axisMergeTol)
	var xs, ys []float64
	index.Search([2]float64{region.X0, region.Top}, [2]float64{region.X1, region.Bottom}, func(_, _ [2]float64, e Edge) bool {
		switch {
		case e.Orientation == 'h' && min(e.X1, crop.X1)-max(e.X0, crop.X0) > axisMergeTol:
			ys = append(ys, e.Y0)
		case e.Orientation == 'v' && min(e.Y1, crop.Bottom)-max(e.Y0, crop.Top) > axisMergeTol:
			xs = append(xs, e.X0)
		}
		return true
	})
	xs, ys = coalesce(xs), coalesce(ys)
	if len(xs) < 2 || len(ys) < 2 {
		return nil, nil, fmt.Errorf("%w: %d columns, %d rows of rulings", models.ErrNoGrid, len(xs), len(ys))
	}

	grid := make([][][]string, len(ys)-1)
	for r := range grid {
		grid[r] = make([][]string, len(xs)-1)
	}
	sorted := append([]models.TextWord(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BBox.Top != sorted[j].BBox.Top {
			return sorted[i].BBox.Top < sorted[j].BBox.Top
		}
		return sorted[i].BBox.X0 < sorted[j].BBox.X0
	})
	var unplaced []models.TextWord
	for _, w := range sorted {
		cx, cy := w.BBox.CenterX(), (w.BBox.Top+w.BBox.Bottom)/2
		c, r := band(xs, cx), band(ys, cy)
		if c < 0 || r < 0 {
			unplaced = append(unplaced, w)
			continue
		}
		grid[r][c] = append(grid[r][c], w.Text)
	}

	out := make([][]string, len(grid))
	for r, row := range grid {
		out[r] = make([]string, len(row))
		for c, parts := range row {
			out[r][c] = strings.Join(parts, " ")
		}
	}
	return out, unplaced, nil
}

// coalesce sorts axis values and merges runs closer than axisMergeTol, so
// double rules produce one axis.
func coalesce(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)
	out := []float64{values[0]}
	for _, v := range values[1:] {
		if v-out[len(out)-1] > axisMergeTol {
			out = append(out, v)
		}
	}
	return out
}

func band(axes []float64, v float64) int {
	if v < axes[0]-geometry.Eps || v > axes[len(axes)-1]+geometry.Eps {
		return -1
	}
	for i := 0; i+1 < len(axes); i++ {
		if v <= axes[i+1] {
			return i
		}
	}
	return len(axes) - 2
}
