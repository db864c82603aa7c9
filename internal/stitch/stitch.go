// Package stitch joins lattice tables that continue across consecutive pages.
package stitch

import (
	"math"
	"sort"

	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
)

var Logger = logger.GetLogger("stitch")

const (
	edgeAlignTolerance = 10.0
	bottomTolerance    = 12.0
	topTolerance       = 2.0
)

type extremes struct {
	maxBottom, minTop float64
}

// Stitch merges the bottom-most lattice table of page N with the top-most of
// page N+1 when both share orientation and column count, their left and right
// edges align within 10 units, and either the first reaches its orientation's
// lowest table bottom (within 12) or the second its highest table top (within
// 2). Each table joins at most one merge. Other tables pass through. The
// result is ordered by first page then top.
func Stitch(tables []models.ExtractedTable) []models.ExtractedTable {
	var lattice, rest []models.ExtractedTable
	for _, t := range tables {
		if t.Strategy == models.StrategyLattice && !t.Merged {
			lattice = append(lattice, t)
		} else {
			rest = append(rest, t)
		}
	}
	if len(lattice) < 2 {
		return tables
	}
	sortTables(lattice)

	bounds := map[models.Orientation]*extremes{}
	byPage := map[int][]int{}
	for i, t := range lattice {
		e, ok := bounds[t.Orientation]
		if !ok {
			e = &extremes{maxBottom: math.Inf(-1), minTop: math.Inf(1)}
			bounds[t.Orientation] = e
		}
		e.maxBottom = max(e.maxBottom, t.BBox.Bottom)
		e.minTop = min(e.minTop, t.BBox.Top)
		byPage[t.Page()] = append(byPage[t.Page()], i)
	}

	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	used := make([]bool, len(lattice))
	var merged []models.ExtractedTable
	for k := 0; k+1 < len(pages); k++ {
		cur, next := pages[k], pages[k+1]
		if next != cur+1 {
			continue
		}
		a, b := bottomMost(lattice, byPage[cur]), topMost(lattice, byPage[next])
		if used[a] || used[b] {
			continue
		}
		first, second := lattice[a], lattice[b]
		if !continues(first, second, *bounds[first.Orientation]) {
			Logger.Debug("tables not stitched", "page", cur, "next", next, "first", first.BBox, "second", second.BBox)
			continue
		}
		used[a], used[b] = true, true
		merged = append(merged, join(first, second))
		Logger.Info("stitched table across pages", "pages", []int{cur, next}, "rows", len(first.Grid)+len(second.Grid))
	}

	out := make([]models.ExtractedTable, 0, len(tables))
	out = append(out, merged...)
	for i, t := range lattice {
		if !used[i] {
			out = append(out, t)
		}
	}
	out = append(out, rest...)
	sortTables(out)
	return out
}

// continues reports whether second carries on first's table.
func continues(first, second models.ExtractedTable, e extremes) bool {
	if first.Orientation != second.Orientation || first.Page()+1 != second.Page() {
		return false
	}
	if first.ColumnCount() != second.ColumnCount() {
		return false
	}
	if math.Abs(first.BBox.X0-second.BBox.X0) >= edgeAlignTolerance || math.Abs(first.BBox.X1-second.BBox.X1) >= edgeAlignTolerance {
		return false
	}
	return e.maxBottom-first.BBox.Bottom <= bottomTolerance || second.BBox.Top-e.minTop <= topTolerance
}

func join(first, second models.ExtractedTable) models.ExtractedTable {
	out := first
	out.Grid = append(models.CloneGrid(first.Grid), models.CloneGrid(second.Grid)...)
	out.BBox.Bottom = second.BBox.Bottom
	out.Pages = []int{first.Page(), second.Page()}
	out.Merged = true
	out.Unplaced = append(append([]models.TextWord(nil), first.Unplaced...), second.Unplaced...)
	return out
}

// bottomMost returns the table with the largest bottom; the first wins ties.
func bottomMost(tables []models.ExtractedTable, idx []int) int {
	best := idx[0]
	for _, i := range idx[1:] {
		if tables[i].BBox.Bottom > tables[best].BBox.Bottom {
			best = i
		}
	}
	return best
}

// topMost returns the table with the smallest top; the first wins ties.
func topMost(tables []models.ExtractedTable, idx []int) int {
	best := idx[0]
	for _, i := range idx[1:] {
		if tables[i].BBox.Top < tables[best].BBox.Top {
			best = i
		}
	}
	return best
}

func sortTables(tables []models.ExtractedTable) {
	sort.SliceStable(tables, func(i, j int) bool {
		if tables[i].Page() != tables[j].Page() {
			return tables[i].Page() < tables[j].Page()
		}
		return tables[i].BBox.Top < tables[j].BBox.Top
	})
}
