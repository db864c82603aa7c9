package testutil

import (
	"os"
	"path/filepath"

	"github.com/tablemap/tablemap/internal/bridge"
)

var TestDataDir string

func init() {
	root := FindProjectRoot()
	if root != "" {
		TestDataDir = filepath.Join(root, "test_data", "pdfs")
	}
}

// FindProjectRoot walks up from the working directory to the go.mod holder.
func FindProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

const (
	CharWidth  = 5.0
	WordHeight = 8.0
)

// Word places text with its top-left corner at (x, top); width grows with the
// text length.
func Word(text string, x, top float64) bridge.RawWord {
	return bridge.RawWord{Text: text, X0: x, Top: top, X1: x + CharWidth*float64(len([]rune(text))), Bottom: top + WordHeight, Size: WordHeight}
}

func HLine(x0, x1, y float64) bridge.RawBox { return bridge.RawBox{X0: x0, Top: y, X1: x1, Bottom: y} }
func VLine(x, top, bottom float64) bridge.RawBox {
	return bridge.RawBox{X0: x, Top: top, X1: x, Bottom: bottom}
}

// GridPage draws a fully ruled grid over xs by ys and writes cells[r][c]
// centred in each cell. Empty strings leave the cell blank.
func GridPage(num int, xs, ys []float64, cells [][]string) *bridge.RawPageData {
	page := &bridge.RawPageData{PageNumber: num, Width: 612, Height: 792}
	for _, y := range ys {
		page.Lines = append(page.Lines, HLine(xs[0], xs[len(xs)-1], y))
	}
	for _, x := range xs {
		page.Lines = append(page.Lines, VLine(x, ys[0], ys[len(ys)-1]))
	}
	for r, row := range cells {
		for c, text := range row {
			if text == "" || r+1 >= len(ys) || c+1 >= len(xs) {
				continue
			}
			w := CharWidth * float64(len([]rune(text)))
			cx := (xs[c] + xs[c+1]) / 2
			cy := (ys[r] + ys[r+1]) / 2
			page.Words = append(page.Words, Word(text, cx-w/2, cy-WordHeight/2))
		}
	}
	return page
}

// TextColumns lays rows of words out at fixed column x positions with no
// rulings, one row every pitch units starting at top.
func TextColumns(xs []float64, top, pitch float64, rows [][]string) []bridge.RawWord {
	var words []bridge.RawWord
	for r, row := range rows {
		for c, text := range row {
			if text == "" || c >= len(xs) {
				continue
			}
			words = append(words, Word(text, xs[c], top+float64(r)*pitch))
		}
	}
	return words
}
