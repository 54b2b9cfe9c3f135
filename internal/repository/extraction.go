package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm"
)

// Extraction is a stored run.
type Extraction struct {
	ID             uuid.UUID           `json:"id"`
	Filename       string              `json:"filename"`
	ContentHash    string              `json:"content_hash"`
	Status         constants.RunStatus `json:"status"`
	DPI            int                 `json:"dpi"`
	Enhanced       bool                `json:"enhanced"`
	ForceOCR       bool                `json:"force_ocr"`
	MaxPages       int                 `json:"max_pages"`
	PagesProcessed int                 `json:"pages_processed"`
	PagesTotal     int                 `json:"pages_total"`
	OCRPages       int                 `json:"ocr_pages"`
	TextChars      int                 `json:"text_chars"`
	DocumentText   string              `json:"document_text,omitempty"`
	Fields         llm.ContractFields  `json:"fields"`
	FieldsFound    int                 `json:"fields_found"`
	Model          string              `json:"model,omitempty"`
	RawOutput      string              `json:"raw_output,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	DurationMS     int64               `json:"duration_ms"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ListFilter narrows List. Zero values mean no constraint; Limit defaults to 50.
type ListFilter struct {
	From   time.Time
	To     time.Time // exclusive
	Status constants.RunStatus
	Limit  int
	Offset int
}

type ExtractionRepository interface {
	Create(ctx context.Context, e *Extraction) error
	Get(ctx context.Context, id uuid.UUID) (*Extraction, error)
	List(ctx context.Context, f ListFilter) ([]*Extraction, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

const extractionTable = "extraction"

var extractionColumns = []string{
	"id", "filename", "content_hash", "status",
	"dpi", "enhanced", "force_ocr", "max_pages",
	"pages_processed", "pages_total", "ocr_pages", "text_chars", "document_text",
	constants.FieldContractNumber, constants.FieldContractDate, constants.FieldExpirationDate,
	constants.FieldCounterparty, constants.FieldCountry, constants.FieldContractAmount,
	constants.FieldContractCurrency, constants.FieldPaymentCurrency,
	"fields_found", "model", "raw_output", "warnings", "error_message",
	"duration_ms", "created_at",
}

type extractionRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractionRepository(db *DB, log *slog.Logger) ExtractionRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractionRepo{db: db, log: log}
}

func (r *extractionRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *extractionRepo) Create(ctx context.Context, e *Extraction) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if e.Status == "" {
		e.Status = constants.RunStatusRunning
	}

	warnings, err := json.Marshal(nonNil(e.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	var amount any
	if e.Fields.ContractAmount.Known {
		amount = e.Fields.ContractAmount.Value
	}
	var errMsg any
	if e.ErrorMessage != "" {
		errMsg = e.ErrorMessage
	}
	f := e.Fields.AsMap()

	query, args := r.builder().Insert(extractionTable).
		Columns(extractionColumns...).
		Values(
			e.ID, e.Filename, e.ContentHash, string(e.Status),
			e.DPI, e.Enhanced, e.ForceOCR, e.MaxPages,
			e.PagesProcessed, e.PagesTotal, e.OCRPages, e.TextChars, e.DocumentText,
			f[constants.FieldContractNumber], f[constants.FieldContractDate], f[constants.FieldExpirationDate],
			f[constants.FieldCounterparty], f[constants.FieldCountry], amount,
			f[constants.FieldContractCurrency], f[constants.FieldPaymentCurrency],
			e.FieldsFound, e.Model, e.RawOutput, string(warnings), errMsg,
			e.DurationMS, e.CreatedAt,
		).Query()

	if _, err := r.db.SQL().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("extraction create failed", "id", e.ID, "err", err)
		return fmt.Errorf("%w: insert extraction: %v", common.ErrDatabase, err)
	}
	r.log.Info("extraction stored", "id", e.ID, "status", e.Status, "filename", e.Filename)
	return nil
}

func (r *extractionRepo) Get(ctx context.Context, id uuid.UUID) (*Extraction, error) {
	query, args := r.builder().
		Select(extractionColumns...).
		From(entsql.Table(extractionTable)).
		Where(entsql.EQ("id", id)).
		Query()

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get extraction: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: get extraction: %v", common.ErrDatabase, err)
		}
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("extraction %s", id), common.ErrNotFound)
	}
	return scanExtraction(rows)
}

func (r *extractionRepo) List(ctx context.Context, f ListFilter) ([]*Extraction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var preds []*entsql.Predicate
	if !f.From.IsZero() {
		preds = append(preds, entsql.GTE("created_at", f.From.UTC()))
	}
	if !f.To.IsZero() {
		preds = append(preds, entsql.LT("created_at", f.To.UTC()))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}

	sel := r.builder().
		Select(extractionColumns...).
		From(entsql.Table(extractionTable)).
		OrderBy(entsql.Desc("created_at")).
		Limit(limit)
	if f.Offset > 0 {
		sel = sel.Offset(f.Offset)
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	query, args := sel.Query()

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list extractions: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list extractions: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *extractionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args := r.builder().
		Delete(extractionTable).
		Where(entsql.LT("created_at", cutoff.UTC())).
		Query()
	res, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("extraction purge failed", "cutoff", cutoff, "err", err)
		return 0, fmt.Errorf("%w: purge extractions: %v", common.ErrDatabase, err)
	}
	n, _ := res.RowsAffected()
	r.log.Info("extractions purged", "cutoff", cutoff, "deleted", n)
	return n, nil
}

func scanExtraction(rows *sql.Rows) (*Extraction, error) {
	var (
		e        Extraction
		status   string
		docText  sql.NullString
		amount   sql.NullFloat64
		model    sql.NullString
		raw      sql.NullString
		warnings []byte
		errMsg   sql.NullString
		fl       = &e.Fields
	)
	err := rows.Scan(
		&e.ID, &e.Filename, &e.ContentHash, &status,
		&e.DPI, &e.Enhanced, &e.ForceOCR, &e.MaxPages,
		&e.PagesProcessed, &e.PagesTotal, &e.OCRPages, &e.TextChars, &docText,
		&fl.ContractNumber, &fl.ContractDate, &fl.ExpirationDate,
		&fl.Counterparty, &fl.Country, &amount,
		&fl.ContractCurrency, &fl.PaymentCurrency,
		&e.FieldsFound, &model, &raw, &warnings, &errMsg,
		&e.DurationMS, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: scan extraction: %v", common.ErrDatabase, err)
	}
	e.Status = constants.RunStatus(status)
	e.DocumentText = docText.String
	if amount.Valid {
		fl.ContractAmount = llm.KnownAmount(amount.Float64)
	}
	e.Model = model.String
	e.RawOutput = raw.String
	e.ErrorMessage = errMsg.String
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &e.Warnings); err != nil {
			return nil, fmt.Errorf("%w: decode warnings: %v", common.ErrDatabase, err)
		}
	}
	return &e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// IsNotFound reports whether err is a missing-row error from this package.
func IsNotFound(err error) bool { return errors.Is(err, common.ErrNotFound) }
