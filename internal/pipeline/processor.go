package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm"
	"github.com/joseph-ayodele/contracts-extractor/internal/repository"
)

// ResultCache stores finished outcomes. *cache.ResultCache implements it.
type ResultCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// Store persists finished runs.
type Store interface {
	Create(ctx context.Context, e *repository.Extraction) error
}

// Upload is a document as received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// Metrics summarize one run for display.
type Metrics struct {
	PagesProcessed int   `json:"pages_processed"`
	PagesTotal     int   `json:"pages_total"`
	OCRPages       int   `json:"ocr_pages"`
	EmptyPages     int   `json:"empty_pages"`
	TotalChars     int   `json:"total_chars"`
	FieldsFound    int   `json:"fields_found"`
	FieldsTotal    int   `json:"fields_total"`
	TextMS         int64 `json:"text_ms"`
	LLMMS          int64 `json:"llm_ms"`
	TotalMS        int64 `json:"total_ms"`
}

// Outcome is the result of processing one document. A failed field
// extraction still carries the document text.
type Outcome struct {
	ID        uuid.UUID           `json:"id"`
	Filename  string              `json:"filename"`
	SHA256    string              `json:"sha256"`
	Status    constants.RunStatus `json:"status"`
	Options   Options             `json:"options"`
	Pages     []Page              `json:"pages"`
	Text      string              `json:"text"`
	Fields    llm.ContractFields  `json:"fields"`
	Raw       string              `json:"raw_output,omitempty"`
	Model     string              `json:"model,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
	Error     string              `json:"error,omitempty"`
	Metrics   Metrics             `json:"metrics"`
	Cached    bool                `json:"cached"`
	CreatedAt time.Time           `json:"created_at"`
}

// Result returns the eight extracted fields keyed by name.
func (o *Outcome) Result() map[string]any { return o.Fields.AsMap() }

// Config for the Processor.
type Config struct {
	MaxUploadBytes int64
}

// Processor coordinates the text stage then the parse stage for one document.
// Store and Cache are optional. Without a parse stage a run stops at TEXT_OK.
type Processor struct {
	Logger *slog.Logger
	Cfg    Config
	Text   *TextStage
	Parse  *ParseStage
	Store  Store
	Cache  ResultCache
}

func NewProcessor(logger *slog.Logger, cfg Config, text *TextStage, parse *ParseStage, store Store, cache ResultCache) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.MaxUploadBytes
	}
	return &Processor{Logger: logger, Cfg: cfg, Text: text, Parse: parse, Store: store, Cache: cache}
}

// Process validates the upload, extracts page text, asks the model for the
// fields and records the run. Input and whole-document errors are returned
// as errors; a failed field extraction is an Outcome with status FAILED.
func (p *Processor) Process(ctx context.Context, up Upload, opts Options) (*Outcome, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	logger := p.Logger.With("req_id", rid)
	start := time.Now()
	opts = opts.Normalize()

	doc, err := NewDocument(up.Filename, up.Data, p.Cfg.MaxUploadBytes)
	if err != nil {
		logger.Warn("processor.input.rejected", "filename", up.Filename, "bytes", len(up.Data), "error", err)
		return nil, err
	}
	defer func() {
		if err := doc.Close(); err != nil {
			logger.Warn("processor.cleanup.failed", "error", err)
		}
	}()

	key := opts.CacheKey(doc.SHA256)
	if p.Cache != nil {
		var cached Outcome
		hit, err := p.Cache.Get(ctx, key, &cached)
		if err != nil {
			logger.Warn("processor.cache.get_failed", "error", err)
		}
		if hit {
			cached.Cached = true
			cached.Filename = doc.Filename
			logger.Info("processor.cache.hit", "sha256", doc.SHA256, "id", cached.ID)
			return &cached, nil
		}
	}

	out := &Outcome{
		ID:        doc.ID,
		Filename:  doc.Filename,
		SHA256:    doc.SHA256,
		Status:    constants.RunStatusRunning,
		Options:   opts,
		Fields:    llm.UnknownFields(),
		CreatedAt: start.UTC(),
	}
	logger.Info("processor.start", "id", out.ID, "filename", doc.Filename, "bytes", len(doc.Data),
		"dpi", opts.DPI, "enhanced", opts.Enhanced, "force_ocr", opts.ForceOCR, "max_pages", opts.MaxPages)

	// 1) text stage: direct text with OCR fallback
	pages, err := p.Text.Run(ctx, doc, opts)
	if err != nil {
		logger.Error("processor.text.failed", "id", out.ID, "error", err)
		return nil, err
	}
	out.Pages = pages
	out.Text = AssembleText(pages)
	out.Metrics = pageMetrics(pages, doc.TotalPages)
	out.Metrics.TextMS = time.Since(start).Milliseconds()
	for _, pg := range pages {
		for _, w := range pg.Warnings {
			out.Warnings = append(out.Warnings, "page "+strconv.Itoa(pg.Number)+": "+w)
		}
	}
	logger.Info("processor.text.ok", "id", out.ID,
		"pages", out.Metrics.PagesProcessed, "total_pages", out.Metrics.PagesTotal,
		"ocr_pages", out.Metrics.OCRPages, "chars", out.Metrics.TotalChars,
		"elapsed_ms", out.Metrics.TextMS)

	// 2) parse stage: a failure here leaves the text available
	if !hasText(pages) {
		out.Status = constants.RunStatusFailed
		out.Error = "no text could be extracted from the document"
		logger.Warn("processor.text.empty", "id", out.ID)
	} else if p.Parse == nil {
		// text-only run
		out.Status = constants.RunStatusTextOK
	} else {
		out.Status = constants.RunStatusTextOK
		llmStart := time.Now()
		res, err := p.Parse.Run(ctx, out.Text)
		out.Metrics.LLMMS = time.Since(llmStart).Milliseconds()
		out.Fields = res.Fields
		out.Raw = res.Raw
		out.Model = res.Model
		out.Warnings = append(out.Warnings, res.Warnings...)
		if err != nil {
			out.Status = constants.RunStatusFailed
			out.Error = err.Error()
		} else {
			out.Status = constants.RunStatusLLMOK
		}
	}
	out.Metrics.FieldsFound = out.Fields.Found()
	out.Metrics.FieldsTotal = len(constants.Fields)
	out.Metrics.TotalMS = time.Since(start).Milliseconds()

	p.persist(ctx, logger, out)
	if out.Status == constants.RunStatusLLMOK && p.Cache != nil {
		if err := p.Cache.Set(ctx, key, out); err != nil {
			logger.Warn("processor.cache.set_failed", "error", err)
		}
	}

	logger.Info("processor.done", "id", out.ID, "status", out.Status,
		"fields_found", out.Metrics.FieldsFound, "elapsed_ms", out.Metrics.TotalMS)
	return out, nil
}

// persist is best effort: a storage failure is logged and reported as a warning.
func (p *Processor) persist(ctx context.Context, logger *slog.Logger, out *Outcome) {
	if p.Store == nil {
		return
	}
	rec := &repository.Extraction{
		ID:             out.ID,
		Filename:       out.Filename,
		ContentHash:    out.SHA256,
		Status:         out.Status,
		DPI:            out.Options.DPI,
		Enhanced:       out.Options.Enhanced,
		ForceOCR:       out.Options.ForceOCR,
		MaxPages:       out.Options.MaxPages,
		PagesProcessed: out.Metrics.PagesProcessed,
		PagesTotal:     out.Metrics.PagesTotal,
		OCRPages:       out.Metrics.OCRPages,
		TextChars:      out.Metrics.TotalChars,
		DocumentText:   out.Text,
		Fields:         out.Fields,
		FieldsFound:    out.Metrics.FieldsFound,
		Model:          out.Model,
		RawOutput:      out.Raw,
		Warnings:       out.Warnings,
		ErrorMessage:   out.Error,
		DurationMS:     out.Metrics.TotalMS,
		CreatedAt:      out.CreatedAt,
	}
	if err := p.Store.Create(ctx, rec); err != nil {
		logger.Error("processor.persist.failed", "id", out.ID, "error", err)
		out.Warnings = append(out.Warnings, "result not stored: "+err.Error())
	}
}

func pageMetrics(pages []Page, total int) Metrics {
	m := Metrics{PagesProcessed: len(pages), PagesTotal: total}
	for _, pg := range pages {
		switch pg.Method {
		case constants.PageMethodOCR, constants.PageMethodOCRStrong:
			m.OCRPages++
		case constants.PageMethodEmpty:
			m.EmptyPages++
		}
		m.TotalChars += utf8.RuneCountInString(pg.Text)
	}
	return m
}

func hasText(pages []Page) bool {
	for _, pg := range pages {
		if strings.TrimSpace(pg.Text) != "" {
			return true
		}
	}
	return false
}
