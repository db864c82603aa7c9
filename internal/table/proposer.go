package table

import (
	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/normalize"
)

// Proposer suggests table regions from tolerant ruling analysis. The regions
// are raw: the hybrid detector classifies and expands them.
type Proposer struct{}

func (Proposer) Propose(page *normalize.Page) []geometry.BBox {
	tables := detectTables(page.Segments, page.Bounds())
	out := make([]geometry.BBox, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.BBox)
	}
	Logger.Debug("regions proposed", "page", page.Number, "count", len(out))
	return out
}
