package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/llm"
	"github.com/joseph-ayodele/contracts-extractor/internal/repository"
)

type fakeLister struct {
	rows    []*repository.Extraction
	filters []repository.ListFilter
}

func (f *fakeLister) List(_ context.Context, lf repository.ListFilter) ([]*repository.Extraction, error) {
	f.filters = append(f.filters, lf)
	end := min(lf.Offset+lf.Limit, len(f.rows))
	if lf.Offset >= end {
		return nil, nil
	}
	return f.rows[lf.Offset:end], nil
}

func TestExportXLSX(t *testing.T) {
	fields := llm.UnknownFields()
	fields.ContractNumber = "123"
	fields.ContractAmount = llm.KnownAmount(2500.5)
	lister := &fakeLister{rows: []*repository.Extraction{
		{Filename: "a.pdf", Status: constants.RunStatusLLMOK, Fields: fields, FieldsFound: 2, PagesProcessed: 3,
			CreatedAt: time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)},
		{Filename: "b.pdf", Status: constants.RunStatusFailed, Fields: llm.UnknownFields(), ErrorMessage: "llm unavailable",
			CreatedAt: time.Date(2024, 2, 2, 9, 30, 0, 0, time.UTC)},
	}}
	svc := NewService(lister, nil)

	from := time.Date(2024, 2, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	data, err := svc.ExportXLSX(context.Background(), &from, &to)
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	if got := lister.filters[0]; !got.From.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) || !got.To.Equal(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("filter = %+v", got)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][3] != "Contract Number" || rows[1][3] != "123" || rows[1][8] != "2500.5" {
		t.Errorf("row 1 = %q", rows[1])
	}
	if rows[2][2] != "FAILED" || rows[2][8] != constants.Unknown || rows[2][14] != "llm unavailable" {
		t.Errorf("row 2 = %q", rows[2])
	}
}

func TestExportPaginates(t *testing.T) {
	lister := &fakeLister{}
	for i := 0; i < pageSize+3; i++ {
		lister.rows = append(lister.rows, &repository.Extraction{Filename: "x.pdf", Fields: llm.UnknownFields()})
	}
	data, err := NewService(lister, nil).ExportXLSX(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(lister.filters) != 2 || lister.filters[1].Offset != pageSize {
		t.Errorf("filters = %+v", lister.filters)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(sheet)
	if len(rows) != pageSize+4 {
		t.Errorf("rows = %d", len(rows))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Контрагент", 5); got != "Конт…" {
		t.Errorf("truncate = %q", got)
	}
}
