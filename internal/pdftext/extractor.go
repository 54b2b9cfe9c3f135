// Package pdftext reads the embedded text layer of a PDF page by page and
// decides whether that text is good enough to skip OCR.
package pdftext

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
)

// LayoutConfig controls how positioned glyphs are stitched into lines.
type LayoutConfig struct {
	RowTolerance     float64 // max Y distance (points) for glyphs on the same row
	WordSpaceFactor  float64 // gap / font size above which a space is inserted
	ParagraphFactor  float64 // row gap / font size above which a blank line is inserted
	DefaultFontSize  float64
	FallbackToStream bool // use the plain text stream when a page has no positioned glyphs
}

// DefaultLayoutConfig mirrors typical contract PDFs (10-12pt body text).
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		RowTolerance:     3.0,
		WordSpaceFactor:  0.25,
		ParagraphFactor:  2.2,
		DefaultFontSize:  10,
		FallbackToStream: true,
	}
}

// Reader wraps an opened PDF.
type Reader struct {
	r      *pdf.Reader
	layout LayoutConfig
	logger *slog.Logger
}

// Open parses data as a PDF. Parser panics on malformed input are turned into errors.
func Open(data []byte, layout LayoutConfig, logger *slog.Logger) (rd *Reader, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(data) == 0 {
		return nil, common.NewAppError("INPUT_ERROR", "empty pdf", common.ErrInvalidInput)
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("pdftext.open.panic", "recovered", fmt.Sprint(rec))
			rd, err = nil, common.NewAppError("PDF_ERROR", fmt.Sprintf("parse pdf: %v", rec), common.ErrPDFUnreadable)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, common.NewAppError("PDF_ERROR", "parse pdf", fmt.Errorf("%w: %v", common.ErrPDFUnreadable, err))
	}
	if r.NumPage() == 0 {
		return nil, common.NewAppError("PDF_ERROR", "pdf has no pages", common.ErrPDFUnreadable)
	}
	return &Reader{r: r, layout: layout, logger: logger}, nil
}

// NumPage returns the total number of pages in the document.
func (rd *Reader) NumPage() int {
	return rd.r.NumPage()
}

// PageText returns the direct text of page n (1-based) in reading order.
func (rd *Reader) PageText(n int) (text string, err error) {
	if n < 1 || n > rd.r.NumPage() {
		return "", fmt.Errorf("page %d out of range 1..%d", n, rd.r.NumPage())
	}
	defer func() {
		if rec := recover(); rec != nil {
			rd.logger.Warn("pdftext.page.panic", "page", n, "recovered", fmt.Sprint(rec))
			text, err = "", fmt.Errorf("page %d: %v", n, rec)
		}
	}()

	page := rd.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}

	glyphs := page.Content().Text
	if out := Layout(glyphs, rd.layout); strings.TrimSpace(out) != "" {
		return out, nil
	}
	if !rd.layout.FallbackToStream {
		return "", nil
	}
	plain, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d plain text: %w", n, err)
	}
	return strings.TrimSpace(plain), nil
}

type row struct {
	y      float64
	size   float64
	glyphs []pdf.Text
}

// Layout reconstructs lines from positioned glyphs: rows top to bottom,
// glyphs left to right, spaces where the horizontal gap is wide enough.
func Layout(glyphs []pdf.Text, cfg LayoutConfig) string {
	if len(glyphs) == 0 {
		return ""
	}
	if cfg.RowTolerance <= 0 {
		cfg.RowTolerance = 3
	}
	if cfg.DefaultFontSize <= 0 {
		cfg.DefaultFontSize = 10
	}

	items := make([]pdf.Text, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" || g.S == "\r" {
			continue
		}
		items = append(items, g)
	}
	if len(items) == 0 {
		return ""
	}

	// PDF user space grows upwards, so higher Y comes first.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Y != items[j].Y {
			return items[i].Y > items[j].Y
		}
		return items[i].X < items[j].X
	})

	var rows []*row
	for _, g := range items {
		if n := len(rows); n > 0 && math.Abs(rows[n-1].y-g.Y) <= cfg.RowTolerance {
			r := rows[n-1]
			r.glyphs = append(r.glyphs, g)
			r.size = math.Max(r.size, g.FontSize)
			continue
		}
		rows = append(rows, &row{y: g.Y, size: g.FontSize, glyphs: []pdf.Text{g}})
	}

	var b strings.Builder
	for i, r := range rows {
		sort.SliceStable(r.glyphs, func(a, c int) bool { return r.glyphs[a].X < r.glyphs[c].X })
		line := strings.TrimRight(joinRow(r.glyphs, cfg), " ")
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			size := r.size
			if size <= 0 {
				size = cfg.DefaultFontSize
			}
			if cfg.ParagraphFactor > 0 && i > 0 && rows[i-1].y-r.y > cfg.ParagraphFactor*size {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)
	}
	return b.String()
}

func joinRow(glyphs []pdf.Text, cfg LayoutConfig) string {
	var b strings.Builder
	prevEnd := math.Inf(-1)
	lastSpace := true
	for _, g := range glyphs {
		size := g.FontSize
		if size <= 0 {
			size = cfg.DefaultFontSize
		}
		if !lastSpace && g.X-prevEnd > cfg.WordSpaceFactor*size && !strings.HasPrefix(g.S, " ") {
			b.WriteByte(' ')
			lastSpace = true
		}
		s := g.S
		if lastSpace {
			s = strings.TrimLeft(s, " ")
		}
		if s != "" {
			b.WriteString(s)
			lastSpace = strings.HasSuffix(s, " ")
		}
		prevEnd = g.X + g.W
	}
	return b.String()
}
