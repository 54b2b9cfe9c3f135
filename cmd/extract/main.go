package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joseph-ayodele/contracts-extractor/internal/app"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	def := pipeline.DefaultOptions()
	var (
		in       = flag.String("in", "", "PDF file to process (required)")
		dpi      = flag.Int("dpi", def.DPI, "OCR rasterization DPI (200-400, step 50)")
		enhanced = flag.Bool("enhanced", false, "strong preprocessing for every OCR'd page")
		forceOCR = flag.Bool("force-ocr", false, "ignore the embedded text layer")
		maxPages = flag.Int("max-pages", def.MaxPages, "pages to process (1-20)")
		textOnly = flag.Bool("text-only", false, "print the text and skip the language model")
		asJSON   = flag.Bool("json", false, "print the whole outcome as JSON")
	)
	flag.Parse()

	if *in == "" {
		printError("Error: -in is required\n")
		flag.Usage()
		os.Exit(2)
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	// the CLI never persists or caches
	cfg.Database.DSN, cfg.Database.SQLitePath, cfg.Cache.Addr = "", "", ""
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{SkipLLM: *textOnly, NoCache: true})
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	out, err := a.Processor.Process(ctx, pipeline.Upload{Filename: filepath.Base(*in), Data: data}, pipeline.Options{
		DPI:      *dpi,
		Enhanced: *enhanced,
		ForceOCR: *forceOCR,
		MaxPages: *maxPages,
	})
	if err != nil {
		printError("Error: %v\n", err)
		a.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if *asJSON {
		_ = enc.Encode(out)
	} else {
		fmt.Println(out.Text)
		if !*textOnly {
			fmt.Println()
			_ = enc.Encode(out.Result())
		}
		m := out.Metrics
		printError("pages: %d/%d (ocr %d), chars: %d, fields: %d/%d, %d ms\n",
			m.PagesProcessed, m.PagesTotal, m.OCRPages, m.TotalChars, m.FieldsFound, m.FieldsTotal, m.TotalMS)
		for _, w := range out.Warnings {
			printError("warning: %s\n", w)
		}
	}
	if out.Error != "" {
		printError("Error: %s\n", out.Error)
		a.Close()
		os.Exit(1)
	}
}
