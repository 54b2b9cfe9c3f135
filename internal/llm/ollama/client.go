// Package ollama implements llm.ChatModel over a local Ollama server using
// the eino chat model component.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/joseph-ayodele/contracts-extractor/internal/llm"
)

type Config struct {
	BaseURL string // e.g. http://localhost:11434
	Model   string // e.g. gemma3:4b
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	chat   model.BaseChatModel
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "gemma3:4b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	cm, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Format:  json.RawMessage(`"json"`),
	})
	if err != nil {
		return nil, fmt.Errorf("create ollama chat model: %w", err)
	}
	return &Client{cfg: cfg, chat: cm, logger: logger}, nil
}

func (c *Client) Name() string { return "ollama/" + c.cfg.Model }

func (c *Client) Close() error { return nil }

func (c *Client) Generate(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()
	msgs := []*schema.Message{}
	if req.System != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	msgs = append(msgs, schema.UserMessage(req.User))

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	resp, err := c.chat.Generate(ctx, msgs, opts...)
	if err != nil {
		c.logger.Error("llm.ollama.error", "model", c.cfg.Model, "host", c.cfg.BaseURL, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ChatResponse{}, fmt.Errorf("ollama generate: %w", err)
	}

	out := llm.ChatResponse{Content: strings.TrimSpace(resp.Content), Model: c.cfg.Model}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		out.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
		out.CompletionTokens = resp.ResponseMeta.Usage.CompletionTokens
	}
	c.logger.Debug("llm.ollama.ok", "model", c.cfg.Model, "chars", len(out.Content), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}
