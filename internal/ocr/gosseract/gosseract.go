//go:build gosseract

// Package gosseract registers an in-process Tesseract engine backed by the
// libtesseract bindings. Build with -tags gosseract.
package gosseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/contracts-extractor/internal/ocr"
)

func init() {
	ocr.Register("gosseract", func(cfg ocr.EngineConfig, _ ocr.Runner, logger *slog.Logger) (ocr.Engine, error) {
		return New(cfg, logger)
	})
}

// Engine keeps one client for its lifetime. Calls are serialized because
// the underlying TessBaseAPI is not safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	logger *slog.Logger
}

func New(cfg ocr.EngineConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := gosseract.NewClient()
	if cfg.TessdataDir != "" {
		c.TessdataPrefix = cfg.TessdataDir
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "rus+eng"
	}
	if err := c.SetLanguage(strings.Split(lang, "+")...); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("set psm: %w", err)
		}
	}
	if cfg.OEM > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("tessedit_ocr_engine_mode"), strconv.Itoa(cfg.OEM)); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("set oem: %w", err)
		}
	}
	return &Engine{client: c, logger: logger}, nil
}

func (e *Engine) Name() string                 { return "gosseract" }
func (e *Engine) Granularity() ocr.Granularity { return ocr.Word }

func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("gosseract: engine closed")
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}
	frags := make([]ocr.Fragment, 0, len(boxes))
	for _, b := range boxes {
		frags = append(frags, ocr.Fragment{Text: b.Word, Box: b.Box, Confidence: b.Confidence / 100})
	}
	e.logger.Debug("ocr.gosseract.ok", "words", len(frags))
	return frags, nil
}

// Close releases the client. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
