// Package providers builds the configured llm.ChatModel.
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm/anthropic"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm/ollama"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm/openai"
)

// New constructs the chat model named by cfg.Provider. The caller owns it
// and must Close it on shutdown.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.ChatModel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", cfg.Provider, "model", cfg.Model)

	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		c, err := ollama.NewClient(ctx, ollama.Config{
			BaseURL: cfg.OllamaHost,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM provider %q", cfg.Provider), common.ErrInvalidInput)
	}
}

// NewExtractor constructs the chat model and wraps it in an llm.Client.
func NewExtractor(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (*llm.Client, error) {
	model, err := New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(model, llm.ClientConfig{
		Temperature: cfg.Temperature,
		MaxChars:    cfg.MaxChars,
	}, logger)
	if err != nil {
		_ = model.Close()
		return nil, err
	}
	return client, nil
}
