package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
)

type fakeModel struct {
	content string
	err     error
	calls   int
	last    ChatRequest
}

func (f *fakeModel) Name() string { return "fake" }
func (f *fakeModel) Close() error { return nil }

func (f *fakeModel) Generate(_ context.Context, req ChatRequest) (ChatResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return ChatResponse{}, f.err
	}
	return ChatResponse{Content: f.content, Model: "fake-1"}, nil
}

func newTestClient(t *testing.T, m ChatModel, cfg ClientConfig) *Client {
	t.Helper()
	c, err := NewClient(m, cfg, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestExtractFields(t *testing.T) {
	m := &fakeModel{content: `{
		"contract_number": "№123",
		"contract_date": "2024-01-10",
		"expiration_date": "unknown",
		"counterparty": "unknown",
		"country": "unknown",
		"contract_amount": "unknown",
		"contract_currency": "unknown",
		"payment_currency": "unknown"
	}`}
	c := newTestClient(t, m, ClientConfig{Temperature: 0.1})

	res, err := c.ExtractFields(context.Background(), ExtractRequest{Text: "Contract No. 123 dated 2024-01-10"})
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if res.Fields.ContractNumber != "123" || res.Fields.ContractDate != "2024-01-10" {
		t.Errorf("fields = %+v", res.Fields)
	}
	if res.Fields.Country != constants.Unknown || res.Fields.ContractAmount.Known {
		t.Errorf("absent fields not unknown: %+v", res.Fields)
	}
	if res.Model != "fake-1" || res.Raw == "" {
		t.Errorf("model/raw = %q/%q", res.Model, res.Raw)
	}
	if !m.last.JSON || m.last.Temperature != 0.1 || !strings.Contains(m.last.User, "Contract No. 123") {
		t.Errorf("request = %+v", m.last)
	}
}

func TestExtractFieldsTruncatesPrompt(t *testing.T) {
	m := &fakeModel{content: `{}`}
	c := newTestClient(t, m, ClientConfig{MaxChars: 10})
	res, err := c.ExtractFields(context.Background(), ExtractRequest{Text: strings.Repeat("я", 50)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(m.last.User, strings.Repeat("я", 10)+"\n...(truncated)") {
		t.Errorf("user prompt = %q", m.last.User)
	}
	// missing keys fail the schema but still yield a result
	if res.Fields != UnknownFields() || len(res.Warnings) == 0 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Warnings[0], "truncated to 10 of 50 characters") {
		t.Errorf("warnings = %q", res.Warnings)
	}
}

func TestExtractFieldsNoTruncationWarning(t *testing.T) {
	m := &fakeModel{content: `{}`}
	c := newTestClient(t, m, ClientConfig{MaxChars: 50})
	res, err := c.ExtractFields(context.Background(), ExtractRequest{Text: strings.Repeat("я", 50)})
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range res.Warnings {
		if strings.Contains(w, "truncated") {
			t.Errorf("unexpected warning %q", w)
		}
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	got := truncate("Сумма контракта", 5)
	if got != "Сумма...(truncated)" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}

func TestExtractFieldsEmptyText(t *testing.T) {
	m := &fakeModel{}
	c := newTestClient(t, m, ClientConfig{})
	res, err := c.ExtractFields(context.Background(), ExtractRequest{Text: "  \n "})
	if err != nil {
		t.Fatal(err)
	}
	if m.calls != 0 {
		t.Errorf("model called %d times", m.calls)
	}
	if res.Fields != UnknownFields() {
		t.Errorf("fields = %+v", res.Fields)
	}
}

func TestExtractFieldsTransportError(t *testing.T) {
	c := newTestClient(t, &fakeModel{err: errors.New("connection refused")}, ClientConfig{})
	_, err := c.ExtractFields(context.Background(), ExtractRequest{Text: "Договор № 1"})
	if !errors.Is(err, common.ErrLLMUnavailable) {
		t.Fatalf("err = %v, want ErrLLMUnavailable", err)
	}
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "LLM_UNAVAILABLE" {
		t.Errorf("err = %#v", err)
	}
}

func TestExtractFieldsMalformed(t *testing.T) {
	c := newTestClient(t, &fakeModel{content: "I could not find any contract here."}, ClientConfig{})
	res, err := c.ExtractFields(context.Background(), ExtractRequest{Text: "Договор № 1"})
	if !errors.Is(err, common.ErrMalformedOutput) {
		t.Fatalf("err = %v, want ErrMalformedOutput", err)
	}
	if res.Fields != UnknownFields() || res.Raw != "I could not find any contract here." {
		t.Errorf("result = %+v", res)
	}
}

func TestNewClientNilModel(t *testing.T) {
	if _, err := NewClient(nil, ClientConfig{}, nil); err == nil {
		t.Error("expected error for nil model")
	}
}

func TestBuildUserPrompt(t *testing.T) {
	got := BuildUserPrompt("  текст  ", 0)
	if got != "DOCUMENT_TEXT:\nтекст" {
		t.Errorf("BuildUserPrompt = %q", got)
	}
	for _, f := range constants.Fields {
		if !strings.Contains(BuildSystemPrompt(), f) {
			t.Errorf("system prompt missing %s", f)
		}
	}
}
