// Package app assembles the extraction stack from configuration. The
// binaries under cmd/ share it.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-extractor/internal/cache"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/export"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm/providers"
	"github.com/joseph-ayodele/contracts-extractor/internal/ocr"
	"github.com/joseph-ayodele/contracts-extractor/internal/pdftext"
	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
	"github.com/joseph-ayodele/contracts-extractor/internal/preprocess"
	repo "github.com/joseph-ayodele/contracts-extractor/internal/repository"
	"github.com/joseph-ayodele/contracts-extractor/internal/server"
)

// App owns every long-lived dependency. Close releases them in reverse
// construction order.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	Engine    ocr.Engine
	Extractor *llm.Client
	DB        *repo.DB // nil when persistence is disabled
	Runs      repo.ExtractionRepository
	Exporter  *export.Service
	Cache     *cache.ResultCache // nil when caching is disabled
	Processor *pipeline.Processor
}

// Options adjust Build for the command-line tools.
type Options struct {
	SkipLLM  bool // text only; no chat model is constructed
	InMemory bool // use an in-memory SQLite store regardless of config
	NoCache  bool
}

// Build constructs the stack described by cfg.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (a *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.Engine, err = ocr.NewEngine(cfg.OCR.Engine, ocr.EngineConfig{
		Binary:      cfg.OCR.Tesseract,
		Lang:        cfg.OCR.Lang,
		TessdataDir: cfg.OCR.TessdataDir,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
	}, nil, logger)
	if err != nil {
		return nil, err
	}
	prep := preprocess.New(preprocess.Config{
		TargetWidth:    cfg.Preprocess.TargetWidth,
		MaxSide:        cfg.Preprocess.MaxSide,
		CLAHEClip:      cfg.Preprocess.CLAHEClip,
		CLAHETiles:     cfg.Preprocess.CLAHETiles,
		UnsharpAmount:  cfg.Preprocess.UnsharpAmount,
		UnsharpSigma:   cfg.Preprocess.UnsharpSigma,
		DeskewMaxAngle: cfg.Preprocess.DeskewMaxAngle,
	}, logger)
	adapter := ocr.NewAdapter(a.Engine, ocr.NewPdftoppmRasterizer(cfg.OCR.Pdftoppm, nil, logger), prep,
		ocr.AdapterConfig{
			MinDPI: cfg.OCR.MinDPI,
			Lines: ocr.LineConfig{
				MinTolerance:    cfg.Lines.MinTolerance,
				ToleranceFactor: cfg.Lines.ToleranceFactor,
				WordGapFactor:   cfg.Lines.WordGapFactor,
				MinConfidence:   cfg.Lines.MinConfidence,
			},
		}, logger)
	text := pipeline.NewTextStage(adapter, pdftext.QualityConfig{
		MinDirectChars:     cfg.Quality.MinDirectChars,
		MinTextChars:       cfg.Quality.MinTextChars,
		MaxConfusableRatio: cfg.Quality.MaxConfusableRatio,
		MinUniqueRatio:     cfg.Quality.MinUniqueRatio,
		DiversityWindow:    cfg.Quality.DiversityWindow,
		MinCyrillicRatio:   cfg.Quality.MinCyrillicRatio,
	}, pdftext.DefaultLayoutConfig(), logger)

	var parse *pipeline.ParseStage
	if !opts.SkipLLM {
		a.Extractor, err = providers.NewExtractor(ctx, cfg.LLM, logger)
		if err != nil {
			return nil, err
		}
		parse = pipeline.NewParseStage(a.Extractor, logger)
	}

	dbCfg := cfg.Database
	if opts.InMemory {
		dbCfg.DSN, dbCfg.SQLitePath = "", ":memory:"
	}
	a.DB, err = server.ConnectDB(ctx, dbCfg, logger)
	switch {
	case errors.Is(err, repo.ErrNoDatabase):
		logger.Info("app.db.disabled")
		err = nil
	case err != nil:
		return nil, err
	default:
		a.Runs = repo.NewExtractionRepository(a.DB, logger)
		a.Exporter = export.NewService(a.Runs, logger)
	}

	var store pipeline.Store
	if a.Runs != nil {
		store = a.Runs
	}
	var rc pipeline.ResultCache
	if !opts.NoCache {
		if a.Cache = cache.New(cache.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Cache.TTL,
		}, logger); a.Cache != nil {
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if perr := a.Cache.Ping(pctx); perr != nil {
				logger.Warn("app.cache.unreachable", "addr", cfg.Cache.Addr, "error", perr)
			}
			cancel()
			rc = a.Cache
		}
	}

	a.Processor = pipeline.NewProcessor(logger, pipeline.Config{MaxUploadBytes: cfg.MaxUploadBytes()}, text, parse, store, rc)
	logger.Info("app.ready", "config", cfg.String())
	return a, nil
}

// Close releases the engine, the chat model, the cache and the database.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("app.cache.close_failed", "error", err)
		}
	}
	if a.DB != nil {
		server.CloseDB(a.DB, a.Logger)
	}
	if a.Extractor != nil {
		if err := a.Extractor.Close(); err != nil {
			a.Logger.Warn("app.llm.close_failed", "error", err)
		}
	}
	if a.Engine != nil {
		if err := a.Engine.Close(); err != nil {
			a.Logger.Warn("app.ocr.close_failed", "error", err)
		}
	}
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg *common.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var h slog.Handler
	if strings.EqualFold(cfg.Server.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
