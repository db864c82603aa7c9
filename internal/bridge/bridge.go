package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tablemap/tablemap/internal/geometry"
	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/storage"
)

var Logger = logger.GetLogger("bridge")

// RawBox is a line, rectangle or image primitive in page space.
type RawBox struct{ X0, Top, X1, Bottom float64 }

func (b RawBox) BBox() geometry.BBox { return geometry.New(b.X0, b.Top, b.X1, b.Bottom) }

type RawWord struct {
	Text     string
	X0, Top  float64
	X1       float64
	Bottom   float64
	FontName string
	Size     float64
}

func (w RawWord) BBox() geometry.BBox { return geometry.New(w.X0, w.Top, w.X1, w.Bottom) }

type RawPageData struct {
	PageNumber int
	Width      float64
	Height     float64
	Words      []RawWord
	Lines      []RawBox
	Rects      []RawBox
	Images     []RawBox
}

func (p *RawPageData) Bounds() geometry.BBox { return geometry.BBox{X0: 0, Top: 0, X1: p.Width, Bottom: p.Height} }

type Document struct {
	Source string
	Pages  []*RawPageData
}

// Missing paired coordinates fall back to their partner: bottom from top,
// x1 from x0. Reversed pairs are swapped. A primitive with neither member of
// a pair cannot be placed and is dropped from its page.
type rawBoxJSON struct {
	X0     *float64 `json:"x0"`
	Top    *float64 `json:"top"`
	X1     *float64 `json:"x1"`
	Bottom *float64 `json:"bottom"`
}

func (r rawBoxJSON) placeable() bool {
	return (r.X0 != nil || r.X1 != nil) && (r.Top != nil || r.Bottom != nil)
}

func (r rawBoxJSON) box() RawBox {
	x0, x1 := pair(r.X0, r.X1)
	top, bottom := pair(r.Top, r.Bottom)
	bb := geometry.New(x0, top, x1, bottom)
	return RawBox{bb.X0, bb.Top, bb.X1, bb.Bottom}
}

func (b RawBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawBoxJSON{&b.X0, &b.Top, &b.X1, &b.Bottom})
}

type rawWordJSON struct {
	Text     string   `json:"text"`
	X0       *float64 `json:"x0"`
	Top      *float64 `json:"top"`
	X1       *float64 `json:"x1"`
	Bottom   *float64 `json:"bottom"`
	FontName string   `json:"fontname,omitempty"`
	Size     float64  `json:"size,omitempty"`
}

func (r rawWordJSON) placeable() bool {
	return rawBoxJSON{r.X0, r.Top, r.X1, r.Bottom}.placeable()
}

func (r rawWordJSON) word() RawWord {
	b := rawBoxJSON{r.X0, r.Top, r.X1, r.Bottom}.box()
	if r.Bottom == nil && r.Size > 0 {
		b.Bottom = b.Top + r.Size
	}
	return RawWord{Text: r.Text, X0: b.X0, Top: b.Top, X1: b.X1, Bottom: b.Bottom, FontName: r.FontName, Size: r.Size}
}

func (w RawWord) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawWordJSON{w.Text, &w.X0, &w.Top, &w.X1, &w.Bottom, w.FontName, w.Size})
}

func pair(a, b *float64) (float64, float64) {
	switch {
	case a == nil:
		return *b, *b
	case b == nil:
		return *a, *a
	}
	return *a, *b
}

type rawPageJSON struct {
	PageNumber int       `json:"page_number"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	Words      []RawWord `json:"words"`
	Lines      []RawBox  `json:"lines"`
	Rects      []RawBox  `json:"rects"`
	Images     []RawBox  `json:"images"`
}

type pageInputJSON struct {
	PageNumber int           `json:"page_number"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Words      []rawWordJSON `json:"words"`
	Lines      []rawBoxJSON  `json:"lines"`
	Rects      []rawBoxJSON  `json:"rects"`
	Images     []rawBoxJSON  `json:"images"`
}

func (p *RawPageData) UnmarshalJSON(data []byte) error {
	var r pageInputJSON
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = RawPageData{PageNumber: r.PageNumber, Width: r.Width, Height: r.Height}
	for _, w := range r.Words {
		if !w.placeable() {
			Logger.Warn("dropping word without coordinates", "page", r.PageNumber, "text", w.Text, "err", models.ErrMalformedInput)
			continue
		}
		p.Words = append(p.Words, w.word())
	}
	p.Lines = boxes(r.PageNumber, "line", r.Lines)
	p.Rects = boxes(r.PageNumber, "rect", r.Rects)
	p.Images = boxes(r.PageNumber, "image", r.Images)
	return nil
}

func boxes(page int, kind string, in []rawBoxJSON) []RawBox {
	var out []RawBox
	for _, b := range in {
		if !b.placeable() {
			Logger.Warn("dropping primitive without coordinates", "page", page, "kind", kind, "err", models.ErrMalformedInput)
			continue
		}
		out = append(out, b.box())
	}
	return out
}

func (p RawPageData) MarshalJSON() ([]byte, error) { return json.Marshal(rawPageJSON(p)) }

type documentJSON struct {
	Source string         `json:"source"`
	Pages  []*RawPageData `json:"pages"`
}

// Load reads primitives from a PDF, a primitives JSON document or a
// directory of page_N.json files.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	switch {
	case info.IsDir():
		return ReadPageDir(path)
	case strings.EqualFold(filepath.Ext(path), ".pdf"):
		return OpenPDF(path)
	default:
		return ReadDocument(path)
	}
}

func ReadDocument(path string) (*Document, error) {
	Logger.Debug("reading primitives document", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d documentJSON
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	doc := &Document{Source: d.Source, Pages: d.Pages}
	if doc.Source == "" {
		doc.Source = absPath(path)
	}
	fixupPages(doc.Pages)
	return doc, nil
}

// ReadPageDir loads page_N.json files ordered by N. A page that fails to
// decode is logged and skipped so its siblings still load.
func ReadPageDir(dir string) (*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var pageFiles []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "page_") && strings.HasSuffix(e.Name(), ".json") {
			pageFiles = append(pageFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Slice(pageFiles, func(i, j int) bool { return extractPageNum(pageFiles[i]) < extractPageNum(pageFiles[j]) })

	doc := &Document{Source: absPath(dir)}
	for _, f := range pageFiles {
		page, err := ReadRawPage(f)
		if err != nil {
			Logger.Error("failed to read raw page", "path", f, "err", err)
			continue
		}
		if page.PageNumber == 0 {
			page.PageNumber = extractPageNum(f)
		}
		doc.Pages = append(doc.Pages, page)
	}
	if len(doc.Pages) == 0 {
		return nil, errors.New("no readable page_N.json files in " + dir)
	}
	fixupPages(doc.Pages)
	return doc, nil
}

func ReadRawPage(path string) (*RawPageData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var page RawPageData
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	Logger.Debug("page data loaded", "pageNum", page.PageNumber, "words", len(page.Words), "lines", len(page.Lines), "rects", len(page.Rects))
	return &page, nil
}

// fixupPages numbers unnumbered pages and derives missing dimensions from the
// primitives' extent.
func fixupPages(pages []*RawPageData) {
	for i, p := range pages {
		if p.PageNumber == 0 {
			p.PageNumber = i + 1
		}
		if p.Width > 0 && p.Height > 0 {
			continue
		}
		var w, h float64
		grow := func(b RawBox) {
			w, h = max(w, b.X1), max(h, b.Bottom)
		}
		for _, wd := range p.Words {
			grow(RawBox{wd.X0, wd.Top, wd.X1, wd.Bottom})
		}
		for _, group := range [][]RawBox{p.Lines, p.Rects, p.Images} {
			for _, b := range group {
				grow(b)
			}
		}
		Logger.Warn("page without dimensions, using primitive extent", "page", p.PageNumber, "width", w, "height", h)
		if p.Width <= 0 {
			p.Width = w
		}
		if p.Height <= 0 {
			p.Height = h
		}
	}
}

func extractPageNum(filename string) int {
	base := filepath.Base(filename)
	base = strings.TrimPrefix(base, "page_")
	base = strings.TrimSuffix(base, ".json")
	num, _ := strconv.Atoi(base)
	return num
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// WriteDocument persists primitives in the format ReadDocument accepts.
func WriteDocument(path string, doc *Document) error {
	data, err := json.MarshalIndent(documentJSON{doc.Source, doc.Pages}, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, data, 0644, storage.DefaultAttempts)
}
