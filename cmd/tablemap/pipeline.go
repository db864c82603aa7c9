package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/config"
	"github.com/tablemap/tablemap/internal/extractor"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/output"
	"github.com/tablemap/tablemap/internal/stitch"
	"github.com/tablemap/tablemap/internal/structure"
)

// summary is reported once per processed input.
type summary struct {
	tables    map[models.Strategy]int
	merged    int
	conflicts int
	written   int
}

func (s summary) log(source string, elapsed time.Duration) {
	Logger.Info("extraction finished",
		"source", source,
		"lattice", s.tables[models.StrategyLattice],
		"stream", s.tables[models.StrategyStream],
		"text_only", s.tables[models.StrategyTextOnly],
		"merged_groups", s.merged,
		"conflicts", s.conflicts,
		"files", s.written,
		"elapsed", elapsed,
	)
}

func summarize(tables []models.ExtractedTable) summary {
	s := summary{tables: map[models.Strategy]int{}}
	for _, t := range tables {
		s.tables[t.Strategy]++
		if t.Merged {
			s.merged++
		}
		s.conflicts += len(t.Unplaced)
	}
	return s
}

func structureOptions(cfg config.Config) structure.Options {
	opts := structure.DefaultOptions()
	opts.Hybrid = cfg.Strategies.Hybrid
	opts.TextAlignment = cfg.Strategies.TextAlignment
	opts.Workers = cfg.Workers
	return opts
}

func extractorOptions(cfg config.Config) extractor.Options {
	opts := extractor.DefaultOptions()
	opts.Lattice = cfg.Strategies.Lattice
	opts.Stream = cfg.Strategies.Stream
	opts.TextOnly = cfg.Strategies.TextOnly
	return opts
}

// stem is the input's base name without its extension.
func stem(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func mapPath(outDir, input string, format structure.Format) string {
	return filepath.Join(outDir, stem(input)+"_structure_map"+format.Ext())
}

// buildMap loads primitives and writes their structure map under outDir.
func buildMap(ctx context.Context, input, outDir string, cfg config.Config) (*bridge.Document, *models.StructureMap, string, error) {
	format, err := structure.ParseFormat(cfg.MapFormat)
	if err != nil {
		return nil, nil, "", err
	}
	doc, err := bridge.Load(input)
	if err != nil {
		return nil, nil, "", fmt.Errorf("load %s: %w", input, err)
	}
	smap, err := structure.Build(ctx, doc, structureOptions(cfg))
	if err != nil {
		return nil, nil, "", err
	}
	path := mapPath(outDir, input, format)
	if err := structure.Save(path, smap, format, cfg.WriteRetries); err != nil {
		return nil, nil, "", err
	}
	Logger.Info("structure map written", "path", path, "pages", len(smap.Pages))
	return doc, smap, path, nil
}

// extractTables places, stitches and writes every table of smap.
func extractTables(smap *models.StructureMap, doc *bridge.Document, input, outDir string, cfg config.Config) (summary, error) {
	tables := extractor.Extract(smap, doc, extractorOptions(cfg))
	if cfg.Strategies.MergeLattice {
		tables = stitch.Stitch(tables)
	}
	s := summarize(tables)
	written, err := output.WriteTables(outDir, stem(input), tables,
		output.Options{BOM: cfg.CSVBOM, Attempts: cfg.WriteRetries})
	s.written = written
	return s, err
}

// process runs both stages on one input.
func process(ctx context.Context, input, outDir string, cfg config.Config) (summary, error) {
	start := time.Now()
	doc, smap, _, err := buildMap(ctx, input, outDir, cfg)
	if err != nil {
		return summary{}, err
	}
	s, err := extractTables(smap, doc, input, outDir, cfg)
	s.log(input, time.Since(start))
	return s, err
}
