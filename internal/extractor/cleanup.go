package extractor

import (
	"strings"

	"github.com/tablemap/tablemap/internal/text"
)

type CleanupOpts struct {
	BrokenUnicode bool
	Dehyphenate   bool
	Normalize     bool
}

var DefaultCleanup = CleanupOpts{
	BrokenUnicode: true,
	Dehyphenate:   true,
	Normalize:     true,
}

// RepairCenteredText undoes the extra columns centred text produces in a ruled
// grid. It only acts when the grid's width differs from estimated by more
// than one: every (empty, text, empty) run in a row moves its text one cell
// left, then columns left empty in every row are dropped.
func RepairCenteredText(grid [][]string, estimated int) [][]string {
	if len(grid) == 0 {
		return grid
	}
	current := columnCount(grid)
	if abs(current-estimated) <= columnDriftTolerance {
		return grid
	}

	out := make([][]string, len(grid))
	for r, row := range grid {
		row = append([]string(nil), row...)
		for c := 0; c+2 < len(row); {
			if isEmptyCell(row[c]) && !isEmptyCell(row[c+1]) && isEmptyCell(row[c+2]) {
				row[c], row[c+1] = row[c+1], ""
				c += 3
				continue
			}
			c++
		}
		out[r] = row
	}
	return removeEmptyColumns(out, current)
}

func removeEmptyColumns(grid [][]string, width int) [][]string {
	keep := make([]bool, width)
	for _, row := range grid {
		for c, cell := range row {
			if !isEmptyCell(cell) {
				keep[c] = true
			}
		}
	}
	out := make([][]string, len(grid))
	for r, row := range grid {
		cells := make([]string, 0, len(row))
		for c, cell := range row {
			if keep[c] {
				cells = append(cells, cell)
			}
		}
		out[r] = cells
	}
	return out
}

// CleanupGrid pads rows to a rectangle and cleans every cell.
func CleanupGrid(grid [][]string, opts CleanupOpts) [][]string {
	width := columnCount(grid)
	out := make([][]string, len(grid))
	for r, row := range grid {
		cells := make([]string, width)
		for c, cell := range row {
			cells[c] = cleanupCellText(cell, opts)
		}
		out[r] = cells
	}
	return out
}

func cleanupCellText(input string, opts CleanupOpts) string {
	if input == "" {
		return ""
	}

	if opts.BrokenUnicode {
		input = strings.ToValidUTF8(input, "")
		input = strings.ReplaceAll(input, "\uFFFD", "")
	}

	if opts.Dehyphenate {
		input = strings.ReplaceAll(input, "-\n", "")
	}

	if opts.Normalize {
		input = text.NormalizeCell(input)
	}

	return strings.TrimSpace(input)
}

func isEmptyCell(s string) bool { return strings.TrimSpace(s) == "" }

func appendCell(cell, word string) string {
	if cell == "" {
		return word
	}
	return cell + " " + word
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
