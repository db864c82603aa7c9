// Package structure builds the per-page structure map: it runs the detectors
// on each page, resolves their overlaps and persists the result.
package structure

import (
	"errors"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/column"
	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/hybrid"
	"github.com/tablemap/tablemap/internal/lattice"
	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
	"github.com/tablemap/tablemap/internal/table"
)

var Logger = logger.GetLogger("structure")

const (
	textualOverlapLimit = 0.10
	blockOverlapLimit   = 0.80
)

type Options struct {
	Lattice       bool
	Hybrid        bool
	TextAlignment bool
	// Proposer seeds the hybrid detector; nil uses the ruling proposer.
	Proposer hybrid.Proposer
	Workers  int
}

func DefaultOptions() Options {
	return Options{Lattice: true, Hybrid: true, TextAlignment: true}
}

func (o Options) proposer() hybrid.Proposer {
	if o.Proposer != nil {
		return o.Proposer
	}
	return table.Proposer{}
}

// Merge keeps every geometric candidate and drops textual ones whose IoU with
// any geometric candidate exceeds 0.10.
func Merge(geometric, textual []models.TableCandidate) []models.TableCandidate {
	out := make([]models.TableCandidate, 0, len(geometric)+len(textual))
	out = append(out, geometric...)
	for _, t := range textual {
		overlapped := false
		for _, g := range geometric {
			if geometry.IoU(t.BBox, g.BBox) > textualOverlapLimit {
				overlapped = true
				break
			}
		}
		if overlapped {
			Logger.Debug("text alignment candidate superseded", "bbox", t.BBox)
			continue
		}
		out = append(out, t)
	}
	return out
}

// Detect runs the enabled detectors on a normalized page. The hybrid detector
// only runs when the lattice detector found nothing.
func Detect(page *normalize.Page, opts Options) []models.TableCandidate {
	var geometric, textual []models.TableCandidate
	if opts.Lattice {
		geometric = keep(page.Number, "lattice")(lattice.Detect(page))
	}
	if len(geometric) == 0 && opts.Hybrid {
		geometric = keep(page.Number, "hybrid")(hybrid.Detect(page, opts.proposer()))
	}
	if opts.TextAlignment {
		textual = keep(page.Number, "text alignment")(column.Detect(page))
	}
	return Merge(geometric, textual)
}

// keep turns a detector failure into "no table". Detection sentinels are
// expected and only logged at debug level.
func keep(pageNum int, detector string) func([]models.TableCandidate, error) []models.TableCandidate {
	return func(cands []models.TableCandidate, err error) []models.TableCandidate {
		switch {
		case err == nil:
			return cands
		case errors.Is(err, models.ErrInsufficientGeometry), errors.Is(err, models.ErrAmbiguousColumnLayout):
			Logger.Debug("no table", "page", pageNum, "detector", detector, "reason", err)
		default:
			Logger.Warn("detector failed", "page", pageNum, "detector", detector, "err", err)
		}
		return nil
	}
}

// AnalyzePage produces one page's layout: its segments, the text blocks not
// swallowed by a table, images and table candidates, ordered by top.
func AnalyzePage(raw *bridge.RawPageData, opts Options) models.PageLayout {
	page := normalize.Normalize(raw)
	tables := Detect(page, opts)

	layout := models.PageLayout{
		Number:      page.Number,
		Width:       page.Width,
		Height:      page.Height,
		Orientation: page.Orientation,
	}
	for _, s := range page.Segments {
		layout.Elements = append(layout.Elements, models.SegmentElement(s))
	}
	for _, b := range page.Blocks {
		if coveredByTable(b.BBox, tables) {
			continue
		}
		layout.Elements = append(layout.Elements, models.BlockElement(b))
	}
	for _, img := range page.Images {
		layout.Elements = append(layout.Elements, models.ImageElement(img))
	}
	for _, t := range tables {
		layout.Elements = append(layout.Elements, models.TableElement(t))
	}
	layout.SortElements()
	Logger.Debug("page analyzed", "page", layout.Number, "tables", len(tables), "elements", len(layout.Elements))
	return layout
}

func coveredByTable(b geometry.BBox, tables []models.TableCandidate) bool {
	for _, t := range tables {
		if geometry.IoU(b, t.BBox) > blockOverlapLimit {
			return true
		}
	}
	return false
}
