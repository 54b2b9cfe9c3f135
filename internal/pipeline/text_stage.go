package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/ocr"
	"github.com/joseph-ayodele/contracts-extractor/internal/pdftext"
)

// PageRecognizer OCRs one page of a staged PDF. *ocr.Adapter implements it.
type PageRecognizer interface {
	RecognizePage(ctx context.Context, pdfPath string, page int, opts ocr.PageOptions) (ocr.PageResult, error)
}

// Page is the text obtained for one page.
type Page struct {
	Number    int                  `json:"page"`
	Text      string               `json:"text"`
	Method    constants.PageMethod `json:"method"`
	Broken    bool                 `json:"broken"`           // direct text layer rejected
	Reason    string               `json:"reason,omitempty"` // why the direct text was rejected
	Warnings  []string             `json:"warnings,omitempty"`
	Error     string               `json:"error,omitempty"`
	ElapsedMS int64                `json:"elapsed_ms"`
}

// TextStage produces per-page text: the embedded text layer when it is
// usable, OCR otherwise.
type TextStage struct {
	Logger  *slog.Logger
	OCR     PageRecognizer // nil disables the fallback
	Quality pdftext.QualityConfig
	Layout  pdftext.LayoutConfig
}

func NewTextStage(rec PageRecognizer, quality pdftext.QualityConfig, layout pdftext.LayoutConfig, logger *slog.Logger) *TextStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextStage{Logger: logger, OCR: rec, Quality: quality, Layout: layout}
}

// Run processes pages 1..min(opts.MaxPages, page count, MaxPageCap) in order.
// Only a PDF that cannot be parsed at all or a cancelled context is an error;
// page level failures are recorded on the page and leave its text empty.
func (s *TextStage) Run(ctx context.Context, doc *Document, opts Options) ([]Page, error) {
	opts = opts.Normalize()
	logger := common.LoggerFrom(ctx, s.Logger).With("doc_id", doc.ID)

	rd, err := pdftext.Open(doc.Data, s.Layout, logger)
	if err != nil {
		return nil, err
	}
	doc.TotalPages = rd.NumPage()
	n := min(doc.TotalPages, opts.MaxPages, constants.MaxPageCap)
	if doc.TotalPages > n {
		logger.Info("pipeline.pages.capped", "total", doc.TotalPages, "processing", n)
	}

	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		pages = append(pages, s.page(ctx, logger, rd, doc, i, opts))
	}
	return pages, nil
}

func (s *TextStage) page(ctx context.Context, logger *slog.Logger, rd *pdftext.Reader, doc *Document, n int, opts Options) Page {
	start := time.Now()
	pg := Page{Number: n, Method: constants.PageMethodEmpty}

	if !opts.ForceOCR {
		direct, err := rd.PageText(n)
		if err != nil {
			pg.Warnings = append(pg.Warnings, err.Error())
		}
		ok, verdict := pdftext.Usable(direct, s.Quality)
		if ok {
			pg.Text = strings.TrimSpace(direct)
			pg.Method = constants.PageMethodDirect
			logger.Debug("pipeline.page.direct", "page", n, "chars", utf8.RuneCountInString(pg.Text))
			pg.ElapsedMS = time.Since(start).Milliseconds()
			return pg
		}
		pg.Broken, pg.Reason = true, verdict.Reason
		logger.Info("pipeline.page.broken", "page", n, "reason", verdict.Reason,
			"chars", verdict.Stats.Chars, "confusable", verdict.Stats.ConfusableRatio)
	}

	if s.OCR == nil {
		pg.Warnings = append(pg.Warnings, "ocr disabled")
		pg.ElapsedMS = time.Since(start).Milliseconds()
		return pg
	}

	res, err := s.OCR.RecognizePage(ctx, doc.Path, n, ocr.PageOptions{DPI: opts.DPI, Strong: opts.Enhanced})
	pg.Warnings = append(pg.Warnings, res.Warnings...)
	if err != nil {
		pg.Error = err.Error()
		logger.Warn("pipeline.page.ocr_failed", "page", n, "error", err)
		pg.ElapsedMS = time.Since(start).Milliseconds()
		return pg
	}
	pg.Text = strings.TrimSpace(res.Text)
	if pg.Text != "" {
		pg.Method = constants.PageMethodOCR
		if res.Strong {
			pg.Method = constants.PageMethodOCRStrong
		}
	}
	logger.Info("pipeline.page.ocr", "page", n, "method", pg.Method, "dpi", res.DPI,
		"chars", utf8.RuneCountInString(pg.Text), "elapsed_ms", res.Elapsed.Milliseconds())
	pg.ElapsedMS = time.Since(start).Milliseconds()
	return pg
}

// AssembleText joins pages with "=== PAGE n ===" markers separated by blank
// lines. Empty pages keep their marker.
func AssembleText(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, PageMarker(p.Number)+"\n"+p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// PageMarker is the header line placed before each page's text.
func PageMarker(n int) string {
	return "=== PAGE " + strconv.Itoa(n) + " ==="
}
