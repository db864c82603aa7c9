// Package column finds borderless tables from text alignment: bands of
// consecutive lines whose words leave the same vertical gutters.
package column

import (
	"fmt"
	"math"

	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
)

var Logger = logger.GetLogger("column")

const (
	lineTolerance  = 3.0
	bandGapFactor  = 2.0
	minBandLines   = 3
	minColumns     = 2
	minGutterWidth = 3
)

// Band is a run of consecutive text lines analysed as one table candidate.
type Band struct {
	Lines [][]models.TextWord
	BBox  geometry.BBox
}

// Detect returns one text_only candidate per band that projects to enough
// column gutters. Rejected bands are logged and skipped.
func Detect(page *normalize.Page) ([]models.TableCandidate, error) {
	lines := normalize.ClusterLines(page.Words, lineTolerance)
	bands := Bands(lines)
	if len(bands) == 0 {
		return nil, nil
	}
	var out []models.TableCandidate
	for _, band := range bands {
		seps, err := Separators(band)
		if err != nil {
			Logger.Debug("band rejected", "page", page.Number, "bbox", band.BBox, "err", err)
			continue
		}
		geoms := make([]models.Segment, 0, len(seps))
		for _, x := range seps {
			geoms = append(geoms, models.Segment{
				BBox:   geometry.BBox{X0: x, Top: band.BBox.Top, X1: x, Bottom: band.BBox.Bottom},
				Type:   models.GeomVirtual,
				Source: models.SourceVirtual,
			})
		}
		out = append(out, models.TableCandidate{
			BBox:       band.BBox,
			Strategy:   models.StrategyTextOnly,
			Geometries: geoms,
			Reason:     "Found by text alignment",
		})
	}
	Logger.Debug("text alignment", "page", page.Number, "bands", len(bands), "tables", len(out))
	return out, nil
}

// Bands joins consecutive lines whose vertical gap is under twice the
// average line height, measured on each line's first word. Bands shorter than
// three lines are dropped.
func Bands(lines [][]models.TextWord) []Band {
	var heights float64
	var n int
	for _, l := range lines {
		if len(l) > 0 && l[0].BBox.Height() > 0 {
			heights += l[0].BBox.Height()
			n++
		}
	}
	if n == 0 {
		return nil
	}
	maxGap := heights / float64(n) * bandGapFactor

	var bands []Band
	var cur [][]models.TextWord
	flush := func() {
		if len(cur) >= minBandLines {
			bands = append(bands, newBand(cur))
		}
	}
	for _, l := range lines {
		if len(l) == 0 {
			continue
		}
		if len(cur) > 0 && lineTop(l)-lineBottom(cur[len(cur)-1]) >= maxGap {
			flush()
			cur = nil
		}
		cur = append(cur, l)
	}
	flush()
	return bands
}

func newBand(lines [][]models.TextWord) Band {
	b := Band{Lines: lines, BBox: lines[0][0].BBox}
	for _, l := range lines {
		for _, w := range l {
			b.BBox = b.BBox.Union(w.BBox)
		}
	}
	return b
}

func lineTop(l []models.TextWord) float64 {
	top := math.Inf(1)
	for _, w := range l {
		top = math.Min(top, w.BBox.Top)
	}
	return top
}

func lineBottom(l []models.TextWord) float64 {
	bottom := math.Inf(-1)
	for _, w := range l {
		bottom = math.Max(bottom, w.BBox.Bottom)
	}
	return bottom
}

// Separators projects the lines carrying the modal word count onto the x
// axis and returns the midpoints of the widest modal-1 interior gutters,
// left to right.
func Separators(band Band) ([]float64, error) {
	modal := ModalCount(band.Lines)
	if modal < minColumns {
		return nil, fmt.Errorf("%w: modal word count %d", models.ErrAmbiguousColumnLayout, modal)
	}
	width := int(band.BBox.Width())
	if width <= 0 {
		return nil, fmt.Errorf("%w: zero width band", models.ErrAmbiguousColumnLayout)
	}
	projection := make([]int, width)
	for _, l := range band.Lines {
		if len(l) != modal {
			continue
		}
		for _, w := range l {
			start := geometry.Clamp(int(w.BBox.X0-band.BBox.X0), 0, width)
			end := geometry.Clamp(int(w.BBox.X1-band.BBox.X0), 0, width)
			for i := start; i < end; i++ {
				projection[i]++
			}
		}
	}

	gaps := gutters(projection)
	wide := gaps[:0]
	for _, g := range gaps {
		if g.width() > minGutterWidth {
			wide = append(wide, g)
		}
	}
	need := modal - 1
	if len(wide) < need {
		return nil, fmt.Errorf("%w: %d gutters for %d columns", models.ErrAmbiguousColumnLayout, len(wide), modal)
	}
	sortGapsByWidth(wide)
	top := wide[:need]
	sortGapsByStart(top)

	seps := make([]float64, need)
	for i, g := range top {
		seps[i] = band.BBox.X0 + float64(g.start) + float64(g.width())/2
	}
	return seps, nil
}

// ModalCount is the most frequent per-line word count; on ties the count
// seen first wins.
func ModalCount(lines [][]models.TextWord) int {
	counts := make(map[int]int)
	var order []int
	for _, l := range lines {
		if counts[len(l)] == 0 {
			order = append(order, len(l))
		}
		counts[len(l)]++
	}
	best, bestN := 0, 0
	for _, c := range order {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}
