// Package output writes extracted tables as CSV files whose names carry the
// table's provenance.
package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/storage"
)

var Logger = logger.GetLogger("output")

var bom = []byte{0xEF, 0xBB, 0xBF}

type Options struct {
	// BOM prefixes every file with a UTF-8 byte order mark so spreadsheet
	// tools detect the encoding.
	BOM      bool
	Attempts int
}

func DefaultOptions() Options {
	return Options{BOM: true, Attempts: storage.DefaultAttempts}
}

// Dir is the per-strategy directory for a source stem, e.g. report_lattice.
func Dir(root, stem string, s models.Strategy) string {
	return filepath.Join(root, stem+"_"+string(s))
}

// FileName encodes page(s), table index and the integer bbox corners.
// Merged tables list every page and carry a _merge suffix instead of the
// strategy.
func FileName(t models.ExtractedTable) string {
	x0, y0, x1, y1 := int(t.BBox.X0), int(t.BBox.Top), int(t.BBox.X1), int(t.BBox.Bottom)
	if t.Merged && len(t.Pages) > 1 {
		pages := make([]string, len(t.Pages))
		for i, p := range t.Pages {
			pages[i] = fmt.Sprint(p)
		}
		return fmt.Sprintf("page_%s_table_%d_x0%d_y0%d_x1%d_y1%d_merge.csv",
			strings.Join(pages, "_"), t.TableIndex, x0, y0, x1, y1)
	}
	return fmt.Sprintf("page_%d_table_%d_%s_x0%d_y0%d_x1%d_y1%d.csv",
		t.Page(), t.TableIndex, t.Strategy, x0, y0, x1, y1)
}

// Encode renders a grid as CSV.
func Encode(grid [][]string, withBOM bool) ([]byte, error) {
	var buf bytes.Buffer
	if withBOM {
		buf.Write(bom)
	}
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(grid); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTables writes one file per table under root/<stem>_<strategy>. A table
// that fails to encode or write is logged and skipped; the returned error
// joins every such failure.
func WriteTables(root, stem string, tables []models.ExtractedTable, opts Options) (int, error) {
	written := 0
	var errs []error
	for _, t := range tables {
		path := filepath.Join(Dir(root, stem, t.Strategy), FileName(t))
		if err := writeTable(path, t, opts); err != nil {
			Logger.Error("failed to write table", "path", path, "err", err)
			errs = append(errs, err)
			continue
		}
		written++
		Logger.Debug("wrote table", "path", path, "rows", len(t.Grid), "merged", t.Merged)
	}
	return written, errors.Join(errs...)
}

func writeTable(path string, t models.ExtractedTable, opts Options) error {
	data, err := Encode(t.Grid, opts.BOM)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := storage.WriteFileAtomic(path, data, 0644, opts.Attempts); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
