// Package extractor materialises the tables of a structure map into string
// grids, one placer per parsing strategy.
package extractor

import (
	"errors"
	"fmt"
	"time"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/normalize"
	"github.com/tablemap/tablemap/internal/table"
)

var Logger = logger.GetLogger("extractor")

// ErrEmptyRegion means a table bbox holds no words; the table is skipped.
var ErrEmptyRegion = errors.New("no words in table region")

// Segmenter returns the raw ruled grid of a lattice crop plus the words it
// could not place.
type Segmenter interface {
	Segment(segs []models.Segment, crop geometry.BBox, words []models.TextWord) ([][]string, []models.TextWord, error)
}

type Options struct {
	Lattice   bool
	Stream    bool
	TextOnly  bool
	Segmenter Segmenter
	Cleanup   CleanupOpts
}

func DefaultOptions() Options {
	return Options{Lattice: true, Stream: true, TextOnly: true, Cleanup: DefaultCleanup}
}

func (o Options) enabled(s models.Strategy) bool {
	switch s {
	case models.StrategyLattice:
		return o.Lattice
	case models.StrategyStream:
		return o.Stream
	case models.StrategyTextOnly:
		return o.TextOnly
	}
	return false
}

func (o Options) segmenter() Segmenter {
	if o.Segmenter != nil {
		return o.Segmenter
	}
	return table.Segmenter{}
}

// placement is a placer's raw result before cleanup.
type placement struct {
	grid     [][]string
	unplaced []models.TextWord
}

// Extract places every enabled table of smap, reading words and rulings from
// the matching pages of doc. Tables are numbered from 1 per page and
// strategy in map order. A table that fails is logged and skipped.
func Extract(smap *models.StructureMap, doc *bridge.Document, opts Options) []models.ExtractedTable {
	start := time.Now()
	raws := make(map[int]*bridge.RawPageData, len(doc.Pages))
	for _, p := range doc.Pages {
		raws[p.PageNumber] = p
	}

	var out []models.ExtractedTable
	for _, layout := range smap.Pages {
		cands := layout.Tables()
		if len(cands) == 0 {
			continue
		}
		raw, ok := raws[layout.Number]
		if !ok {
			Logger.Error("page missing from primitives", "page", layout.Number, "tables", len(cands))
			continue
		}
		page := normalize.Normalize(raw)
		index := map[models.Strategy]int{}
		for _, cand := range cands {
			index[cand.Strategy]++
			if !opts.enabled(cand.Strategy) {
				continue
			}
			tbl, err := PlaceTable(page, cand, opts)
			switch {
			case errors.Is(err, ErrEmptyRegion):
				Logger.Warn("table skipped", "page", layout.Number, "strategy", cand.Strategy, "bbox", cand.BBox, "err", err)
				continue
			case err != nil:
				Logger.Error("table extraction failed", "page", layout.Number, "strategy", cand.Strategy, "bbox", cand.BBox, "err", err)
				continue
			}
			tbl.Pages = []int{layout.Number}
			tbl.TableIndex = index[cand.Strategy]
			tbl.Orientation = layout.Orientation
			if tbl.Orientation == "" {
				tbl.Orientation = models.OrientationOf(layout.Width, layout.Height)
			}
			out = append(out, tbl)
		}
	}
	Logger.Debug("extraction complete", "tables", len(out), "elapsed", time.Since(start))
	return out
}

// PlaceTable runs the placer for cand's strategy. A panic inside a placer is
// returned as an error so sibling tables still extract.
func PlaceTable(page *normalize.Page, cand models.TableCandidate, opts Options) (tbl models.ExtractedTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("placer panicked: %v", r)
		}
	}()

	var p placement
	switch cand.Strategy {
	case models.StrategyLattice:
		p, err = placeLattice(page, cand, opts.segmenter())
	case models.StrategyStream:
		p, err = placeStream(page, cand)
	case models.StrategyTextOnly:
		p, err = placeTextOnly(page, cand)
	default:
		return tbl, fmt.Errorf("%w: unknown parsing strategy %q", models.ErrMalformedInput, cand.Strategy)
	}
	if err != nil {
		return tbl, err
	}
	for _, w := range p.unplaced {
		Logger.Warn("word not placed", "page", page.Number, "strategy", cand.Strategy, "text", w.Text, "bbox", w.BBox, "err", models.ErrPlacementConflict)
	}
	return models.ExtractedTable{
		Strategy: cand.Strategy,
		BBox:     cand.BBox,
		Grid:     CleanupGrid(p.grid, opts.Cleanup),
		Unplaced: p.unplaced,
	}, nil
}
