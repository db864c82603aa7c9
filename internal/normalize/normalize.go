// Package normalize turns raw page primitives into classified segments and
// text blocks. Every detector reads the resulting Page; nothing here mutates
// the caller's raw data.
package normalize

import (
	"sort"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/text"
)

var Logger = logger.GetLogger("normalize")

const (
	DefaultLineTolerance = 5.0
	defaultCharWidth     = 5.0
	blockMergeDeltaY     = 5.0
	thinRectMax          = 1.0
	thinRectMinLength    = 5.0
)

type Page struct {
	Number      int
	Width       float64
	Height      float64
	Orientation models.Orientation
	Segments    []models.Segment
	Words       []models.TextWord
	Lines       [][]models.TextWord
	Blocks      []models.TextBlock
	Images      []geometry.BBox
}

func (p *Page) Bounds() geometry.BBox { return geometry.BBox{X0: 0, Top: 0, X1: p.Width, Bottom: p.Height} }

func (p *Page) Horizontal() []models.Segment {
	var out []models.Segment
	for _, s := range p.Segments {
		if s.IsHorizontal() {
			out = append(out, s)
		}
	}
	return out
}

func (p *Page) Vertical() []models.Segment {
	var out []models.Segment
	for _, s := range p.Segments {
		if s.Type == models.GeomVertical {
			out = append(out, s)
		}
	}
	return out
}

// Normalize builds a Page from one page's raw primitives.
func Normalize(raw *bridge.RawPageData) *Page {
	page := &Page{
		Number:      raw.PageNumber,
		Width:       raw.Width,
		Height:      raw.Height,
		Orientation: models.OrientationOf(raw.Width, raw.Height),
	}
	for _, l := range raw.Lines {
		page.Segments = append(page.Segments, ClassifySegment(l.BBox(), models.SourceLine))
	}
	for _, r := range raw.Rects {
		page.Segments = append(page.Segments, ClassifySegment(r.BBox(), models.SourceRect))
	}
	for _, img := range raw.Images {
		page.Images = append(page.Images, img.BBox())
	}
	page.Words = Words(raw.Words)
	page.Lines = ClusterLines(page.Words, DefaultLineTolerance)
	page.Blocks = MergeBlocks(page.Lines)
	Logger.Debug("page normalized", "page", page.Number, "segments", len(page.Segments), "words", len(page.Words), "blocks", len(page.Blocks))
	return page
}

// Words copies raw words into the model type, dropping ones with no visible
// text.
func Words(raw []bridge.RawWord) []models.TextWord {
	out := make([]models.TextWord, 0, len(raw))
	for _, w := range raw {
		if !text.HasVisibleContent(w.Text) {
			continue
		}
		out = append(out, models.TextWord{Text: w.Text, BBox: w.BBox()})
	}
	return out
}

// ClassifySegment decides orientation from coincident coordinates first and
// aspect ratio second. Rectangles are lines only when thin: one side at most 1
// unit and the other longer than 5.
func ClassifySegment(b geometry.BBox, src models.SourceKind) models.Segment {
	seg := models.Segment{BBox: b, Source: src}
	w, h := b.Width(), b.Height()
	if src == models.SourceRect {
		switch {
		case w > thinRectMinLength && h <= thinRectMax:
			seg.Type = models.GeomHorizontal
		case h > thinRectMinLength && w <= thinRectMax:
			seg.Type = models.GeomVertical
		default:
			seg.Type = models.GeomRect
		}
		return seg
	}
	switch {
	case geometry.Near(b.X0, b.X1):
		seg.Type = models.GeomVertical
	case geometry.Near(b.Top, b.Bottom):
		seg.Type = models.GeomHorizontal
	case w > h:
		seg.Type = models.GeomHorizontal
	default:
		seg.Type = models.GeomVertical
	}
	return seg
}

// ClusterLines groups words into lines. Words are ordered by (top, x0) and a
// word joins the open cluster while its top is within tolerance of the last
// word added. The tolerance is 0.7 times the height of the word that opened
// the cluster; degenerate heights use defaultTol.
func ClusterLines(words []models.TextWord, defaultTol float64) [][]models.TextWord {
	if len(words) == 0 {
		return nil
	}
	sorted := append([]models.TextWord(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BBox.Top != sorted[j].BBox.Top {
			return sorted[i].BBox.Top < sorted[j].BBox.Top
		}
		return sorted[i].BBox.X0 < sorted[j].BBox.X0
	})

	var lines [][]models.TextWord
	current := []models.TextWord{sorted[0]}
	tol := lineTolerance(sorted[0], defaultTol)
	for _, w := range sorted[1:] {
		if w.BBox.Top-current[len(current)-1].BBox.Top < tol {
			current = append(current, w)
			continue
		}
		lines = append(lines, sortByX(current))
		current = []models.TextWord{w}
		tol = lineTolerance(w, defaultTol)
	}
	return append(lines, sortByX(current))
}

func lineTolerance(w models.TextWord, def float64) float64 {
	if h := w.BBox.Height(); h > geometry.Eps {
		return 0.7 * h
	}
	return def
}

func sortByX(line []models.TextWord) []models.TextWord {
	sort.SliceStable(line, func(i, j int) bool { return line[i].BBox.X0 < line[j].BBox.X0 })
	return line
}

// MergeBlocks emits one TextBlock per line. Adjacent words whose gap is below
// half the preceding run's average character width and whose tops differ by
// less than 5 units merge into one run; the block keeps the runs as Words.
func MergeBlocks(lines [][]models.TextWord) []models.TextBlock {
	blocks := make([]models.TextBlock, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		runs := []models.TextWord{line[0]}
		for _, w := range line[1:] {
			last := &runs[len(runs)-1]
			gap := w.BBox.X0 - last.BBox.X1
			if gap < 0.5*avgCharWidth(*last) && absDiff(w.BBox.Top, last.BBox.Top) < blockMergeDeltaY {
				last.Text += w.Text
				last.BBox.X1 = max(last.BBox.X1, w.BBox.X1)
				last.BBox.Bottom = max(last.BBox.Bottom, w.BBox.Bottom)
				last.BBox.Top = min(last.BBox.Top, w.BBox.Top)
				continue
			}
			runs = append(runs, w)
		}
		block := models.TextBlock{BBox: runs[0].BBox, Words: runs}
		texts := make([]string, len(runs))
		for i, r := range runs {
			block.BBox = block.BBox.Union(r.BBox)
			texts[i] = r.Text
		}
		block.Text = text.JoinWords(texts)
		blocks = append(blocks, block)
	}
	return blocks
}

func avgCharWidth(w models.TextWord) float64 {
	n := len([]rune(w.Text))
	if n == 0 || w.BBox.Width() <= 0 {
		return defaultCharWidth
	}
	return w.BBox.Width() / float64(n)
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
