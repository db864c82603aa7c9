package extractor

import (
	"fmt"
	"sort"

	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
)

const (
	defaultColumnEstimate = 3
	minEstimateWords      = 3
	minColumnGap          = 5.0
	significantGapRatio   = 0.8
	minEstimatedColumns   = 2
	maxEstimatedColumns   = 10
	columnDriftTolerance  = 1
)

func placeLattice(page *normalize.Page, cand models.TableCandidate, seg Segmenter) (placement, error) {
	var words []models.TextWord
	for _, w := range page.Words {
		if cand.BBox.Contains(w.BBox, geometry.Eps) {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return placement{}, fmt.Errorf("%w: lattice table at %v", ErrEmptyRegion, cand.BBox)
	}

	estimated := EstimateColumns(words)
	grid, unplaced, err := seg.Segment(page.Segments, cand.BBox, words)
	if err != nil {
		return placement{}, fmt.Errorf("segment lattice table: %w", err)
	}
	if len(grid) == 0 {
		return placement{}, fmt.Errorf("segment lattice table: %w", models.ErrNoGrid)
	}
	repaired := RepairCenteredText(grid, estimated)
	Logger.Debug("lattice grid", "page", page.Number, "words", len(words), "estimated", estimated,
		"columns", columnCount(grid), "repaired", columnCount(repaired))
	return placement{grid: repaired, unplaced: unplaced}, nil
}

// EstimateColumns guesses a table's column count from the horizontal gaps
// between x-sorted words: gaps over 5 units are candidates, those above 0.8 of
// their median count as column breaks. The result is clamped to [2, 10];
// with too little evidence it is 3.
func EstimateColumns(words []models.TextWord) int {
	if len(words) < minEstimateWords {
		return defaultColumnEstimate
	}
	sorted := append([]models.TextWord(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BBox.X0 < sorted[j].BBox.X0 })

	var gaps []float64
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i].BBox.X0 - sorted[i-1].BBox.X1; d > minColumnGap {
			gaps = append(gaps, d)
		}
	}
	if len(gaps) == 0 {
		return defaultColumnEstimate
	}
	sort.Float64s(gaps)
	median := gaps[len(gaps)/2]
	significant := 0
	for _, d := range gaps {
		if d > median*significantGapRatio {
			significant++
		}
	}
	return geometry.Clamp(significant+1, minEstimatedColumns, maxEstimatedColumns)
}

func columnCount(grid [][]string) int {
	n := 0
	for _, row := range grid {
		n = max(n, len(row))
	}
	return n
}
