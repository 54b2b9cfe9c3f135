package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
)

// ClientConfig tunes a Client.
type ClientConfig struct {
	Temperature float32
	MaxChars    int // document runes sent to the model
	MaxTokens   int
}

// Client implements FieldExtractor over any ChatModel.
// Each call is a single round trip; there are no retries.
type Client struct {
	model  ChatModel
	cfg    ClientConfig
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewClient(model ChatModel, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if model == nil {
		return nil, fmt.Errorf("llm: nil chat model")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	schema, err := CompileSchema(BuildContractJSONSchema())
	if err != nil {
		return nil, err
	}
	return &Client{model: model, cfg: cfg, schema: schema, logger: logger}, nil
}

// Model returns the underlying chat model.
func (c *Client) Model() ChatModel { return c.model }

// Close closes the underlying chat model.
func (c *Client) Close() error { return c.model.Close() }

// ExtractFields asks the model for the eight contract fields.
// A transport failure returns common.ErrLLMUnavailable. Output that cannot
// be decoded returns common.ErrMalformedOutput together with an all-unknown
// Result carrying the raw content.
func (c *Client) ExtractFields(ctx context.Context, req ExtractRequest) (Result, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()
	res := Result{Fields: UnknownFields(), Model: c.model.Name()}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.model.Name(),
		"temp", c.cfg.Temperature,
		"text_len", len([]rune(req.Text)),
		"max_chars", c.cfg.MaxChars,
		"filename", req.Filename,
	)

	if strings.TrimSpace(req.Text) == "" {
		res.Warnings = append(res.Warnings, "empty document text; model not called")
		res.Elapsed = time.Since(start)
		c.logger.Warn("llm.extract.empty_text", "req_id", rid)
		return res, nil
	}

	if n := len([]rune(strings.TrimSpace(req.Text))); n > c.cfg.MaxChars {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"document text truncated to %d of %d characters for the model; fields beyond that point were not searched",
			c.cfg.MaxChars, n))
		c.logger.Warn("llm.extract.truncated", "req_id", rid, "text_len", n, "max_chars", c.cfg.MaxChars)
	}

	resp, err := c.model.Generate(ctx, ChatRequest{
		System:      BuildSystemPrompt(),
		User:        BuildUserPrompt(req.Text, c.cfg.MaxChars),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		JSON:        true,
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		c.logger.Error("llm.extract.transport_error",
			"req_id", rid, "error", err,
			"elapsed_ms", res.Elapsed.Milliseconds(),
		)
		return res, common.NewAppError("LLM_UNAVAILABLE", "language model request failed",
			fmt.Errorf("%w: %v", common.ErrLLMUnavailable, err))
	}
	res.Raw = resp.Content
	if resp.Model != "" {
		res.Model = resp.Model
	}

	m, notes, err := DecodeLenient(resp.Content)
	if err != nil {
		c.logger.Error("llm.extract.decode_failed",
			"req_id", rid, "error", err, "content", truncate(resp.Content, 2000),
			"elapsed_ms", res.Elapsed.Milliseconds(),
		)
		res.Warnings = append(res.Warnings, err.Error())
		return res, common.NewAppError("MALFORMED_OUTPUT", "model output is not a JSON object",
			fmt.Errorf("%w: %v", common.ErrMalformedOutput, err))
	}
	res.Warnings = append(res.Warnings, notes...)

	if err := c.validate(m); err != nil {
		c.logger.Warn("llm.extract.schema_mismatch", "req_id", rid, "error", err)
		res.Warnings = append(res.Warnings, "schema: "+err.Error())
	}

	fields, fnotes := NormalizeFields(m)
	res.Fields = fields
	res.Warnings = append(res.Warnings, fnotes...)
	if len(fnotes) > 0 {
		c.logger.Warn("llm.extract.normalize_sanitize", "req_id", rid, "notes", fnotes)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"contract_number", fields.ContractNumber,
		"contract_date", fields.ContractDate,
		"amount", fields.ContractAmount.String(),
		"currency", fields.ContractCurrency,
		"found", fields.Found(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func (c *Client) validate(m map[string]any) error {
	return c.schema.Validate(m)
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "...(truncated)"
}
