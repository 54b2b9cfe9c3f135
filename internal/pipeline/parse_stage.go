package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm"
)

// ParseStage sends the assembled text to the field extractor.
type ParseStage struct {
	Logger    *slog.Logger
	Extractor llm.FieldExtractor
}

func NewParseStage(fe llm.FieldExtractor, logger *slog.Logger) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStage{Logger: logger, Extractor: fe}
}

// Run executes a single extraction round trip. On error the returned Result
// still carries all-unknown fields and whatever raw output was received.
func (p *ParseStage) Run(ctx context.Context, text string) (llm.Result, error) {
	logger := common.LoggerFrom(ctx, p.Logger)
	logger.Info("parse fields start", "text_chars", len([]rune(text)))

	res, err := p.Extractor.ExtractFields(ctx, llm.ExtractRequest{Text: text})
	if err != nil {
		logger.Error("parse fields failed", "error", err, "elapsed_ms", res.Elapsed.Milliseconds())
		return res, err
	}
	logger.Info("parsed fields successfully",
		"found", res.Fields.Found(),
		"model", res.Model,
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}
