package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm"
	"github.com/joseph-ayodele/contracts-extractor/internal/ocr"
	"github.com/joseph-ayodele/contracts-extractor/internal/pdftext"
	"github.com/joseph-ayodele/contracts-extractor/internal/repository"
	"github.com/joseph-ayodele/contracts-extractor/internal/testutil"
)

const contractJSON = `{"contract_number": "123", "contract_date": "2024-01-10",
	"expiration_date": "unknown", "counterparty": "unknown", "country": "unknown",
	"contract_amount": "unknown", "contract_currency": "unknown", "payment_currency": "unknown"}`

type fakeModel struct {
	content string
	err     error
	calls   int
	lastReq llm.ChatRequest
}

func (f *fakeModel) Name() string { return "fake" }
func (f *fakeModel) Close() error { return nil }

func (f *fakeModel) Generate(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return llm.ChatResponse{}, f.err
	}
	return llm.ChatResponse{Content: f.content, Model: "fake"}, nil
}

type fakeRecognizer struct {
	text  string
	err   error
	pages []int
	opts  []ocr.PageOptions
}

func (f *fakeRecognizer) RecognizePage(_ context.Context, _ string, page int, opts ocr.PageOptions) (ocr.PageResult, error) {
	f.pages = append(f.pages, page)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return ocr.PageResult{Page: page}, f.err
	}
	return ocr.PageResult{Page: page, Text: f.text, DPI: opts.DPI, Strong: opts.Strong}, nil
}

type memStore struct{ rows []*repository.Extraction }

func (m *memStore) Create(_ context.Context, e *repository.Extraction) error {
	m.rows = append(m.rows, e)
	return nil
}

type memCache map[string][]byte

func (m memCache) Get(_ context.Context, key string, dest any) (bool, error) {
	b, ok := m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m memCache) Set(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	m[key] = b
	return err
}

type fixture struct {
	proc  *Processor
	model *fakeModel
	rec   *fakeRecognizer
	store *memStore
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	model := &fakeModel{content: content}
	client, err := llm.NewClient(model, llm.ClientConfig{MaxChars: 100000}, logger)
	if err != nil {
		t.Fatal(err)
	}
	rec := &fakeRecognizer{text: "Сумма контракта: 1 000 000,00 USD"}
	store := &memStore{}
	text := NewTextStage(rec, pdftext.DefaultQualityConfig(), pdftext.DefaultLayoutConfig(), logger)
	proc := NewProcessor(logger, Config{}, text, NewParseStage(client, logger), store, nil)
	return &fixture{proc: proc, model: model, rec: rec, store: store}
}

func TestProcessDirectText(t *testing.T) {
	fx := newFixture(t, contractJSON)
	pdf := testutil.BuildPDF("Contract No. 123 dated 2024-01-10 between the parties below.")

	out, err := fx.proc.Process(context.Background(), Upload{Filename: "c.pdf", Data: pdf}, DefaultOptions())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != constants.RunStatusLLMOK {
		t.Fatalf("status = %s (%s)", out.Status, out.Error)
	}
	if len(fx.rec.pages) != 0 {
		t.Errorf("OCR invoked for pages %v on a clean text layer", fx.rec.pages)
	}
	want := llm.UnknownFields()
	want.ContractNumber = "123"
	want.ContractDate = "2024-01-10"
	if out.Fields != want {
		t.Errorf("fields = %+v", out.Fields)
	}
	if len(out.Result()) != 8 {
		t.Errorf("result has %d keys", len(out.Result()))
	}
	if !strings.HasPrefix(out.Text, "=== PAGE 1 ===\nContract No. 123") {
		t.Errorf("text = %q", out.Text)
	}
	if !strings.Contains(fx.model.lastReq.User, "Contract No. 123 dated 2024-01-10") {
		t.Errorf("prompt = %q", fx.model.lastReq.User)
	}
	if out.Metrics.FieldsFound != 2 || out.Metrics.FieldsTotal != 8 || out.Metrics.PagesProcessed != 1 {
		t.Errorf("metrics = %+v", out.Metrics)
	}
	if len(fx.store.rows) != 1 || fx.store.rows[0].Status != constants.RunStatusLLMOK {
		t.Errorf("stored = %+v", fx.store.rows)
	}
}

func TestProcessLongCleanPageStaysDirect(t *testing.T) {
	fx := newFixture(t, contractJSON)
	pdf := testutil.BuildPDF(testutil.ContractPage)

	out, err := fx.proc.Process(context.Background(), Upload{Filename: "long.pdf", Data: pdf}, DefaultOptions())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(fx.rec.pages) != 0 {
		t.Fatalf("OCR invoked for pages %v", fx.rec.pages)
	}
	if len(out.Pages) != 1 || out.Pages[0].Method != constants.PageMethodDirect {
		t.Fatalf("pages = %+v", out.Pages)
	}
	if !strings.Contains(out.Text, "Northwind Trading LLC") {
		t.Errorf("text = %q", out.Text)
	}
}

func TestProcessOCROnlyForEmptyPages(t *testing.T) {
	fx := newFixture(t, contractJSON)
	pdf := testutil.BuildPDF(
		"Contract No. 123 dated 2024-01-10 between the parties below.",
		"",
		"Payment terms: the buyer pays within thirty days of delivery.",
	)

	opts := DefaultOptions()
	opts.Enhanced = true
	out, err := fx.proc.Process(context.Background(), Upload{Filename: "c.pdf", Data: pdf}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(fx.rec.pages) != 1 || fx.rec.pages[0] != 2 {
		t.Fatalf("OCR pages = %v, want [2]", fx.rec.pages)
	}
	if !fx.rec.opts[0].Strong || fx.rec.opts[0].DPI != constants.DefaultDPI {
		t.Errorf("ocr options = %+v", fx.rec.opts[0])
	}
	methods := []constants.PageMethod{out.Pages[0].Method, out.Pages[1].Method, out.Pages[2].Method}
	if methods[0] != constants.PageMethodDirect || methods[1] != constants.PageMethodOCRStrong || methods[2] != constants.PageMethodDirect {
		t.Errorf("methods = %v", methods)
	}
	if !out.Pages[1].Broken || out.Pages[1].Reason != pdftext.ReasonEmpty {
		t.Errorf("page 2 = %+v", out.Pages[1])
	}
	if !strings.Contains(out.Text, "=== PAGE 2 ===\nСумма контракта") || out.Metrics.OCRPages != 1 {
		t.Errorf("text = %q, metrics = %+v", out.Text, out.Metrics)
	}
}

func TestProcessForceOCR(t *testing.T) {
	fx := newFixture(t, contractJSON)
	pdf := testutil.BuildPDF("Contract No. 123 dated 2024-01-10 between the parties below.", "Second page with plenty of readable text.")
	opts := DefaultOptions()
	opts.ForceOCR = true
	if _, err := fx.proc.Process(context.Background(), Upload{Filename: "c.pdf", Data: pdf}, opts); err != nil {
		t.Fatal(err)
	}
	if len(fx.rec.pages) != 2 {
		t.Errorf("OCR pages = %v, want both", fx.rec.pages)
	}
}

func TestProcessPageCap(t *testing.T) {
	fx := newFixture(t, contractJSON)
	pages := make([]string, 25)
	for i := range pages {
		pages[i] = fmt.Sprintf("Page %d of the agreement between the parties named above.", i+1)
	}
	opts := DefaultOptions()
	opts.MaxPages = 50
	out, err := fx.proc.Process(context.Background(), Upload{Filename: "long.pdf", Data: testutil.BuildPDF(pages...)}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if out.Options.MaxPages != constants.MaxPageCap {
		t.Errorf("max pages = %d", out.Options.MaxPages)
	}
	if len(out.Pages) != 20 || out.Metrics.PagesTotal != 25 {
		t.Errorf("pages = %d of %d", len(out.Pages), out.Metrics.PagesTotal)
	}
	if strings.Contains(out.Text, "=== PAGE 21 ===") || !strings.Contains(out.Text, "=== PAGE 20 ===") {
		t.Error("page cap not applied to assembled text")
	}
}

func TestProcessRejectsInput(t *testing.T) {
	fx := newFixture(t, contractJSON)
	fx.proc.Cfg.MaxUploadBytes = 64

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, common.ErrInvalidInput},
		{"not pdf", []byte("PK\x03\x04 zip archive"), common.ErrNotPDF},
		{"too large", append([]byte("%PDF-1.4\n"), make([]byte, 100)...), common.ErrTooLarge},
		{"unreadable", []byte("%PDF-1.4 truncated"), common.ErrPDFUnreadable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.proc.Process(context.Background(), Upload{Filename: "x", Data: tc.data}, DefaultOptions())
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if fx.model.calls != 0 || len(fx.store.rows) != 0 {
		t.Error("rejected input reached the model or the store")
	}
}

func TestProcessLLMFailureKeepsText(t *testing.T) {
	fx := newFixture(t, "")
	fx.model.err = errors.New("connection refused")
	pdf := testutil.BuildPDF("Contract No. 123 dated 2024-01-10 between the parties below.")

	out, err := fx.proc.Process(context.Background(), Upload{Filename: "c.pdf", Data: pdf}, DefaultOptions())
	if err != nil {
		t.Fatalf("parse failure must not be a Go error: %v", err)
	}
	if out.Status != constants.RunStatusFailed || out.Error == "" {
		t.Errorf("status = %s, error = %q", out.Status, out.Error)
	}
	if !strings.Contains(out.Text, "Contract No. 123") || out.Fields != llm.UnknownFields() {
		t.Errorf("outcome = %+v", out)
	}
	if len(fx.store.rows) != 1 || fx.store.rows[0].ErrorMessage == "" {
		t.Errorf("failed run not stored: %+v", fx.store.rows)
	}
}

func TestProcessNoTextSkipsModel(t *testing.T) {
	fx := newFixture(t, contractJSON)
	fx.rec.text = ""
	out, err := fx.proc.Process(context.Background(), Upload{Filename: "scan.pdf", Data: testutil.BuildPDF("", "")}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if fx.model.calls != 0 || out.Status != constants.RunStatusFailed {
		t.Errorf("model calls = %d, status = %s", fx.model.calls, out.Status)
	}
	if out.Text != "=== PAGE 1 ===\n\n\n=== PAGE 2 ===\n" || out.Metrics.EmptyPages != 2 {
		t.Errorf("text = %q, metrics = %+v", out.Text, out.Metrics)
	}
}

func TestProcessOCRFailureIsPageLevel(t *testing.T) {
	fx := newFixture(t, contractJSON)
	fx.rec.err = errors.New("tesseract: exit status 1")
	pdf := testutil.BuildPDF("Contract No. 123 dated 2024-01-10 between the parties below.", "")
	out, err := fx.proc.Process(context.Background(), Upload{Filename: "c.pdf", Data: pdf}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if out.Pages[1].Error == "" || out.Pages[1].Method != constants.PageMethodEmpty {
		t.Errorf("page 2 = %+v", out.Pages[1])
	}
	if out.Status != constants.RunStatusLLMOK {
		t.Errorf("status = %s", out.Status)
	}
}

func TestProcessCache(t *testing.T) {
	fx := newFixture(t, contractJSON)
	fx.proc.Cache = memCache{}
	pdf := testutil.BuildPDF("Contract No. 123 dated 2024-01-10 between the parties below.")
	up := Upload{Filename: "c.pdf", Data: pdf}

	first, err := fx.proc.Process(context.Background(), up, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	second, err := fx.proc.Process(context.Background(), up, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if fx.model.calls != 1 || !second.Cached || second.Fields != first.Fields {
		t.Errorf("calls = %d, cached = %v", fx.model.calls, second.Cached)
	}

	opts := DefaultOptions()
	opts.DPI = 400
	if _, err := fx.proc.Process(context.Background(), up, opts); err != nil {
		t.Fatal(err)
	}
	if fx.model.calls != 2 {
		t.Errorf("different options reused the cached result")
	}
}

func TestProcessIsRepeatable(t *testing.T) {
	fx := newFixture(t, contractJSON)
	up := Upload{Filename: "c.pdf", Data: testutil.BuildPDF(testutil.ContractPage, "")}
	opts := Options{DPI: 250, Enhanced: true, MaxPages: 5}

	run := func() *Outcome {
		t.Helper()
		out, err := fx.proc.Process(context.Background(), up, opts)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		for i := range out.Pages {
			out.Pages[i].ElapsedMS = 0
		}
		return out
	}
	first, second := run(), run()

	if second.Cached {
		t.Fatal("no cache configured but outcome marked cached")
	}
	if first.Fields != second.Fields {
		t.Errorf("fields differ: %+v vs %+v", first.Fields, second.Fields)
	}
	if first.Text != second.Text {
		t.Errorf("text differs:\n%q\n%q", first.Text, second.Text)
	}
	if !reflect.DeepEqual(first.Pages, second.Pages) {
		t.Errorf("pages differ:\n%+v\n%+v", first.Pages, second.Pages)
	}
	if fx.model.calls != 2 || len(fx.rec.pages) != 2 {
		t.Errorf("model calls = %d, ocr pages = %v", fx.model.calls, fx.rec.pages)
	}
}

func TestProcessTextOnly(t *testing.T) {
	fx := newFixture(t, contractJSON)
	fx.proc.Parse = nil
	pdf := testutil.BuildPDF("Contract No. 123 dated 2024-01-10 between the parties below.")

	out, err := fx.proc.Process(context.Background(), Upload{Filename: "c.pdf", Data: pdf}, DefaultOptions())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != constants.RunStatusTextOK || out.Error != "" {
		t.Errorf("status = %s (%s)", out.Status, out.Error)
	}
	if fx.model.calls != 0 || out.Metrics.FieldsFound != 0 {
		t.Errorf("model calls = %d, fields found = %d", fx.model.calls, out.Metrics.FieldsFound)
	}
	if !strings.Contains(out.Text, "Contract No. 123") {
		t.Errorf("text = %q", out.Text)
	}
}
