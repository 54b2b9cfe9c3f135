package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/contracts-extractor/internal/repository"
	"github.com/joseph-ayodele/contracts-extractor/internal/testutil"
)

func TestBuildTextOnlyInMemory(t *testing.T) {
	cfg, err := common.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Cache.Addr = ""
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := Build(ctx, cfg, logger, Options{SkipLLM: true, InMemory: true, NoCache: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close()

	if a.Extractor != nil || a.Cache != nil {
		t.Errorf("text-only build constructed extractor=%v cache=%v", a.Extractor != nil, a.Cache != nil)
	}
	if a.DB == nil || a.Runs == nil || a.Exporter == nil {
		t.Fatal("in-memory store not wired")
	}

	pdf := testutil.BuildPDF("Contract No. 77 dated 2023-05-02 between the bank and the client.")
	out, err := a.Processor.Process(ctx, pipeline.Upload{Filename: "c.pdf", Data: pdf}, pipeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != constants.RunStatusTextOK {
		t.Errorf("status = %s (%s)", out.Status, out.Error)
	}

	rows, err := a.Runs.List(ctx, repo.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != out.ID {
		t.Errorf("stored rows = %d", len(rows))
	}
}

func TestBuildUnknownEngine(t *testing.T) {
	cfg, err := common.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.OCR.Engine = "paddle"
	if _, err := Build(context.Background(), cfg, nil, Options{SkipLLM: true, NoCache: true}); err == nil {
		t.Error("unknown OCR engine accepted")
	}
}
