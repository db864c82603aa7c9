package extractor

import (
	"fmt"
	"sort"

	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
)

const (
	regionMargin     = 5.0
	streamRowGap     = 2.0
	containTolerance = 1.0
)

type span struct{ x0, x1 float64 }

func (s span) overlap(x0, x1 float64) float64 { return max(0, min(s.x1, x1)-max(s.x0, x0)) }

func (s span) contains(x0, x1 float64) bool {
	return x0 >= s.x0-containTolerance && x1 <= s.x1+containTolerance
}

// placeStream derives column spans from the rows whose word count equals the
// modal count. Those rows place by containment; the rest by largest overlap.
func placeStream(page *normalize.Page, cand models.TableCandidate) (placement, error) {
	rows := tableRows(page.Blocks, cand, streamRowGap)
	if len(rows) == 0 {
		return placement{}, fmt.Errorf("%w: stream table at %v", ErrEmptyRegion, cand.BBox)
	}
	modal := modalWordCount(rows)
	cols := columnSpans(rows, modal)
	Logger.Debug("stream columns", "page", page.Number, "rows", len(rows), "modal", modal, "spans", len(cols))

	var p placement
	for _, row := range rows {
		cells := make([]string, len(cols))
		standard := len(row) == modal
		for i, w := range row {
			var col int
			if standard {
				col = containingSpan(cols, i, w)
			} else {
				col = widestOverlap(cols, w)
			}
			if col < 0 {
				p.unplaced = append(p.unplaced, w)
				continue
			}
			cells[col] = appendCell(cells[col], w.Text)
		}
		p.grid = append(p.grid, cells)
	}
	return p, nil
}

// tableRows gathers the text-block runs lying within cand's bbox (plus a
// 5-unit margin) and bands them into rows: a block opens a new row when its
// top is more than gap below the current row's first top.
func tableRows(blocks []models.TextBlock, cand models.TableCandidate, gap float64) [][]models.TextWord {
	var inside []models.TextBlock
	for _, b := range blocks {
		if cand.BBox.Contains(b.BBox, regionMargin) {
			inside = append(inside, b)
		}
	}
	if len(inside) == 0 {
		return nil
	}
	sort.SliceStable(inside, func(i, j int) bool { return inside[i].BBox.Top < inside[j].BBox.Top })

	var rows [][]models.TextWord
	var current []models.TextWord
	rowTop := inside[0].BBox.Top
	for _, b := range inside {
		if b.BBox.Top-rowTop > gap {
			if len(current) > 0 {
				rows = append(rows, sortWords(current))
			}
			current, rowTop = nil, b.BBox.Top
		}
		current = append(current, b.Words...)
	}
	if len(current) > 0 {
		rows = append(rows, sortWords(current))
	}
	return rows
}

func sortWords(words []models.TextWord) []models.TextWord {
	sort.SliceStable(words, func(i, j int) bool { return words[i].BBox.X0 < words[j].BBox.X0 })
	return words
}

// modalWordCount is the most frequent non-zero row length; ties go to the
// larger length.
func modalWordCount(rows [][]models.TextWord) int {
	counts := map[int]int{}
	for _, r := range rows {
		if len(r) > 0 {
			counts[len(r)]++
		}
	}
	best, bestN := 0, 0
	for n, c := range counts {
		if c > bestN || (c == bestN && n > best) {
			best, bestN = n, c
		}
	}
	return best
}

// columnSpans takes, for each ordinal position, the min x0 and max x1 over
// the rows with exactly modal words.
func columnSpans(rows [][]models.TextWord, modal int) []span {
	cols := make([]span, modal)
	seen := make([]bool, modal)
	for _, row := range rows {
		if len(row) != modal {
			continue
		}
		for i, w := range row {
			if !seen[i] {
				cols[i], seen[i] = span{w.BBox.X0, w.BBox.X1}, true
				continue
			}
			cols[i].x0 = min(cols[i].x0, w.BBox.X0)
			cols[i].x1 = max(cols[i].x1, w.BBox.X1)
		}
	}
	return cols
}

// containingSpan prefers the word's own ordinal column, then the first span
// containing it within 1 unit.
func containingSpan(cols []span, ordinal int, w models.TextWord) int {
	if ordinal < len(cols) && cols[ordinal].contains(w.BBox.X0, w.BBox.X1) {
		return ordinal
	}
	for i, c := range cols {
		if c.contains(w.BBox.X0, w.BBox.X1) {
			return i
		}
	}
	return -1
}

// widestOverlap returns the span with the largest positive horizontal
// overlap; the first one wins ties.
func widestOverlap(cols []span, w models.TextWord) int {
	best, bestOverlap := -1, 0.0
	for i, c := range cols {
		if o := c.overlap(w.BBox.X0, w.BBox.X1); o > bestOverlap {
			best, bestOverlap = i, o
		}
	}
	return best
}
