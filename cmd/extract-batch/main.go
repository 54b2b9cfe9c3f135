package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/app"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/ingest"
	"github.com/joseph-ayodele/contracts-extractor/internal/jobs"
	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type summary struct {
	mu        sync.Mutex
	processed int
	extracted int
	failures  int
}

func (s *summary) record(job jobs.Job, out *pipeline.Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.failures++
		printError("FAIL %s: %v\n", job.Path, err)
	case out.Status != constants.RunStatusLLMOK:
		s.processed++
		s.failures++
		printError("FAIL %s: %s\n", job.Path, out.Error)
	default:
		s.processed++
		s.extracted++
		fmt.Printf("OK   %s (%d/%d fields)\n", job.Path, out.Metrics.FieldsFound, out.Metrics.FieldsTotal)
	}
}

func main() {
	def := pipeline.DefaultOptions()
	var (
		inmem    = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir      = flag.String("dir", "", "directory to process contracts from (required)")
		out      = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		workers  = flag.Int("workers", 1, "documents processed concurrently")
		watch    = flag.Bool("watch", false, "keep running and process PDFs added to -dir")
		dpi      = flag.Int("dpi", def.DPI, "OCR rasterization DPI (200-400, step 50)")
		enhanced = flag.Bool("enhanced", false, "strong preprocessing for every OCR'd page")
		forceOCR = flag.Bool("force-ocr", false, "ignore embedded text layers")
		maxPages = flag.Int("max-pages", def.MaxPages, "pages to process per document (1-20)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: -dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "contracts.xlsx")
	}
	opts := pipeline.Options{DPI: *dpi, Enhanced: *enhanced, ForceOCR: *forceOCR, MaxPages: *maxPages}.Normalize()

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inMemory := *inmem || (cfg.Database.DSN == "" && cfg.Database.SQLitePath == "")
	a, err := app.Build(ctx, cfg, logger, app.Options{InMemory: inMemory, NoCache: true})
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	if a.Exporter == nil {
		logger.Error("batch mode needs a database")
		os.Exit(1)
	}
	started := time.Now().UTC()

	var sum summary
	queue := jobs.NewQueue(a.Processor, logger,
		jobs.WithWorkers(*workers),
		jobs.WithQueueSize(64),
		jobs.WithProcessTimeout(cfg.Server.RequestTimeout),
		jobs.WithResultHandler(sum.record),
	)

	results, stats, err := ingest.ScanDirectory(ctx, *dir, true, logger)
	if err != nil {
		logger.Error("failed to scan directory", "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		if !queue.Enqueue(ctx, jobs.Job{Path: r.Path, Options: opts}) {
			break
		}
	}

	if *watch {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:    []string{*dir},
			Debounce: 2 * time.Second,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		logger.Info("watching for new contracts", "dir", *dir)
	loop:
		for {
			select {
			case p, ok := <-events:
				if !ok {
					break loop
				}
				queue.Enqueue(ctx, jobs.Job{Path: p, Options: opts})
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("watcher error", "error", err)
			case <-ctx.Done():
				break loop
			}
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout+time.Minute)
	defer cancel()
	queue.Shutdown(drainCtx)

	// Export to XLSX
	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := a.Exporter.ExportXLSX(drainCtx, &started, nil)
	if err != nil {
		logger.Error("failed to export contracts", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"files_processed", sum.processed,
		"failures", sum.failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files found: %d (%d duplicates skipped)\n", stats.Matched, stats.Deduplicated)
	fmt.Printf("- Files processed: %d\n", sum.processed)
	fmt.Printf("- Fields extracted: %d\n", sum.extracted)
	fmt.Printf("- Failures: %d\n", sum.failures)
	fmt.Printf("- Output: %s\n", *out)
}
