package bridge

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// OpenPDF extracts word, rectangle and line primitives from a PDF. Page
// dimensions come from pdfcpu, falling back to the page MediaBox and then US
// Letter. Coordinates are flipped to a top-left origin.
func OpenPDF(path string) (*Document, error) {
	dims := pageDims(path)

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	doc := &Document{Source: absPath(path)}
	total := r.NumPage()
	Logger.Debug("reading pdf", "path", path, "pages", total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		w, h := defaultPageWidth, defaultPageHeight
		if i-1 < len(dims) && dims[i-1][0] > 0 {
			w, h = dims[i-1][0], dims[i-1][1]
		} else if mw, mh, ok := mediaBox(page); ok {
			w, h = mw, mh
		}
		raw, err := readPage(page, i, w, h)
		if err != nil {
			Logger.Error("failed to read page content", "page", i, "err", err)
			raw = &RawPageData{PageNumber: i, Width: w, Height: h}
		}
		doc.Pages = append(doc.Pages, raw)
	}
	return doc, nil
}

func pageDims(path string) [][2]float64 {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	dims, err := api.PageDims(f, nil)
	if err != nil {
		Logger.Warn("pdfcpu could not read page dimensions", "path", path, "err", err)
		return nil
	}
	out := make([][2]float64, len(dims))
	for i, d := range dims {
		out[i] = [2]float64{d.Width, d.Height}
	}
	return out
}

func mediaBox(page pdf.Page) (w, h float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	box := page.V.Key("MediaBox")
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return 0, 0, false
	}
	var c [4]float64
	for i := range c {
		c[i] = box.Index(i).Float64()
	}
	w, h = math.Abs(c[2]-c[0]), math.Abs(c[3]-c[1])
	return w, h, w > 0 && h > 0
}

// readPage recovers from panics raised by malformed content streams.
func readPage(page pdf.Page, num int, width, height float64) (raw *RawPageData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream panic: %v", r)
		}
	}()
	content := page.Content()
	raw = &RawPageData{PageNumber: num, Width: width, Height: height}
	raw.Words = groupGlyphs(content.Text, height)
	for _, rect := range content.Rect {
		b := RawBox{
			X0:     math.Min(rect.Min.X, rect.Max.X),
			X1:     math.Max(rect.Min.X, rect.Max.X),
			Top:    height - math.Max(rect.Min.Y, rect.Max.Y),
			Bottom: height - math.Min(rect.Min.Y, rect.Max.Y),
		}
		// Hairline rectangles are how most producers draw rules.
		if b.X1-b.X0 <= 1 || b.Bottom-b.Top <= 1 {
			raw.Lines = append(raw.Lines, b)
			continue
		}
		raw.Rects = append(raw.Rects, b)
	}
	return raw, nil
}

// groupGlyphs joins positioned glyphs into words. A glyph starts a new word
// when it sits on another baseline, leaves a gap wider than a quarter of the
// font size or is whitespace.
func groupGlyphs(glyphs []pdf.Text, height float64) []RawWord {
	sorted := make([]pdf.Text, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S != "" {
			sorted = append(sorted, g)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		yi, yj := math.Round(sorted[i].Y), math.Round(sorted[j].Y)
		if yi != yj {
			return yi > yj
		}
		return sorted[i].X < sorted[j].X
	})

	var words []RawWord
	var cur *RawWord
	var curY float64
	var sb strings.Builder
	flush := func() {
		if cur != nil && strings.TrimSpace(sb.String()) != "" {
			cur.Text = sb.String()
			words = append(words, *cur)
		}
		cur = nil
		sb.Reset()
	}
	for _, g := range sorted {
		size := g.FontSize
		if size <= 0 {
			size = 10
		}
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			flush()
			continue
		}
		if cur != nil && (math.Abs(g.Y-curY) > size*0.5 || g.X-cur.X1 > size*0.25) {
			flush()
		}
		top := height - g.Y - size*0.8
		bottom := height - g.Y + size*0.2
		if cur == nil {
			cur = &RawWord{X0: g.X, Top: top, X1: g.X + g.W, Bottom: bottom, FontName: g.Font, Size: size}
			curY = g.Y
		} else {
			cur.X1 = math.Max(cur.X1, g.X+g.W)
			cur.Top = math.Min(cur.Top, top)
			cur.Bottom = math.Max(cur.Bottom, bottom)
		}
		sb.WriteString(g.S)
	}
	flush()
	return words
}
