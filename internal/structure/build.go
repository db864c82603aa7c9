package structure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/models"
)

// Build analyses every page of doc. Pages are independent and run on up to
// opts.Workers goroutines; results keep document order. A page whose analysis
// panics is kept with its dimensions and no elements.
func Build(ctx context.Context, doc *bridge.Document, opts Options) (*models.StructureMap, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", models.ErrMalformedInput)
	}
	start := time.Now()
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]models.PageLayout, len(doc.Pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for idx, raw := range doc.Pages {
		idx, raw := idx, raw
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[idx] = analyzeSafely(raw, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build structure map: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build structure map: %w", err)
	}

	smap := &models.StructureMap{Source: doc.Source, RunID: uuid.New().String(), Pages: results}
	Logger.Info("structure map built", "source", doc.Source, "pages", len(results), "tables", countTables(smap), "elapsed", time.Since(start))
	return smap, nil
}

func analyzeSafely(raw *bridge.RawPageData, opts Options) (layout models.PageLayout) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("page analysis panicked", "page", raw.PageNumber, "panic", r)
			layout = models.PageLayout{
				Number:      raw.PageNumber,
				Width:       raw.Width,
				Height:      raw.Height,
				Orientation: models.OrientationOf(raw.Width, raw.Height),
			}
		}
	}()
	return AnalyzePage(raw, opts)
}

func countTables(smap *models.StructureMap) int {
	n := 0
	for i := range smap.Pages {
		n += len(smap.Pages[i].Tables())
	}
	return n
}
