package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-extractor/internal/preprocess"
)

// Preprocessor is the image cleanup step run before recognition.
type Preprocessor interface {
	ShouldUseStrong(img image.Image) bool
	Process(img image.Image, strong bool) (*image.Gray, error)
}

// PageOptions are per-request OCR settings.
type PageOptions struct {
	DPI    int
	Strong bool // force strong preprocessing
}

// PageResult is the OCR outcome for one page.
type PageResult struct {
	Page     int
	Text     string
	Lines    int
	DPI      int
	Strong   bool
	Retried  bool
	Warnings []string
	Elapsed  time.Duration
}

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	MinDPI int
	Lines  LineConfig
}

// Adapter drives rasterize -> preprocess -> recognize -> group for one page.
// It does not own the engine.
type Adapter struct {
	engine Engine
	raster Rasterizer
	prep   Preprocessor
	cfg    AdapterConfig
	logger *slog.Logger
}

func NewAdapter(engine Engine, raster Rasterizer, prep Preprocessor, cfg AdapterConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if prep == nil {
		prep = preprocess.New(preprocess.DefaultConfig(), logger)
	}
	if cfg.MinDPI <= 0 {
		cfg.MinDPI = 300
	}
	return &Adapter{engine: engine, raster: raster, prep: prep, cfg: cfg, logger: logger}
}

// Engine returns the underlying recognition engine.
func (a *Adapter) Engine() Engine { return a.engine }

// RecognizePage OCRs one page of the PDF at pdfPath. A preprocessing
// failure yields an empty page with a warning; rasterization and engine
// failures are returned as errors.
func (a *Adapter) RecognizePage(ctx context.Context, pdfPath string, page int, opts PageOptions) (PageResult, error) {
	start := time.Now()
	res := PageResult{Page: page, DPI: max(a.cfg.MinDPI, opts.DPI)}
	logger := a.logger.With("page", page, "engine", a.engine.Name())

	img, err := a.raster.Render(ctx, pdfPath, page, res.DPI)
	if err != nil {
		return res, fmt.Errorf("rasterize: %w", err)
	}

	res.Strong = opts.Strong || a.prep.ShouldUseStrong(img)
	lines, err := a.recognize(ctx, img, res.Strong)
	if err != nil {
		var pe *preprocessError
		if !errors.As(err, &pe) {
			return res, err
		}
		logger.Warn("ocr.page.preprocess_failed", "error", pe.err)
		res.Warnings = append(res.Warnings, pe.Error())
		res.Elapsed = time.Since(start)
		return res, nil
	}

	if len(lines) == 0 && !res.Strong {
		logger.Debug("ocr.page.retry_strong")
		res.Strong, res.Retried = true, true
		lines, err = a.recognize(ctx, img, true)
		if err != nil {
			var pe *preprocessError
			if !errors.As(err, &pe) {
				return res, err
			}
			res.Warnings = append(res.Warnings, pe.Error())
		}
	}

	res.Lines = len(lines)
	res.Text = Normalize(strings.Join(lines, "\n"))
	res.Elapsed = time.Since(start)
	logger.Info("ocr.page.ok",
		"dpi", res.DPI,
		"strong", res.Strong,
		"retried", res.Retried,
		"lines", res.Lines,
		"chars", len([]rune(res.Text)),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func (a *Adapter) recognize(ctx context.Context, img image.Image, strong bool) ([]string, error) {
	clean, err := a.prep.Process(img, strong)
	if err != nil {
		return nil, &preprocessError{err: err}
	}
	frags, err := a.engine.Recognize(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.engine.Name(), err)
	}
	return GroupLines(frags, a.engine.Granularity(), a.cfg.Lines), nil
}

type preprocessError struct{ err error }

func (e *preprocessError) Error() string { return "preprocess: " + e.err.Error() }
func (e *preprocessError) Unwrap() error { return e.err }
