package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contracts-extractor/internal/repository"
)

// Lister is the read side of the extraction repository.
type Lister interface {
	List(ctx context.Context, f repository.ListFilter) ([]*repository.Extraction, error)
}

// Service is a tiny façade over the repository that produces XLSX bytes for exports.
type Service struct {
	repo   Lister
	logger *slog.Logger
}

func NewService(repo Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

const (
	sheet    = "Extractions"
	pageSize = 500
)

var headers = []string{
	"Processed At",
	"File",
	"Status",
	"Contract Number",
	"Contract Date",
	"Expiration Date",
	"Counterparty",
	"Country",
	"Contract Amount",
	"Contract Currency",
	"Payment Currency",
	"Fields Found",
	"Pages",
	"OCR Pages",
	"Error",
}

// ExportXLSX returns an XLSX workbook (as bytes) of stored runs in a date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all runs.
func (s *Service) ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	filter := repository.ListFilter{Limit: pageSize}
	if from != nil {
		filter.From = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	}
	if to != nil {
		filter.To = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	} else if from != nil {
		today := time.Now().UTC()
		filter.To = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	row := 2
	for {
		recs, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("query extractions: %w", err)
		}
		for _, r := range recs {
			writeRow(f, row, r)
			row++
		}
		if len(recs) < filter.Limit {
			break
		}
		filter.Offset += len(recs)
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 20) // processed at
	_ = f.SetColWidth(sheet, "B", "B", 32) // file
	_ = f.SetColWidth(sheet, "D", "F", 16) // number, dates
	_ = f.SetColWidth(sheet, "G", "G", 40) // counterparty
	_ = f.SetColWidth(sheet, "I", "I", 18) // amount
	_ = f.SetColWidth(sheet, "O", "O", 48) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, r *repository.Extraction) {
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	fl := r.Fields
	write(1, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	write(2, r.Filename)
	write(3, string(r.Status))
	write(4, fl.ContractNumber)
	write(5, fl.ContractDate)
	write(6, fl.ExpirationDate)
	write(7, fl.Counterparty)
	write(8, fl.Country)
	// numbers stay numeric so the sheet can sum them
	if fl.ContractAmount.Known {
		write(9, fl.ContractAmount.Value)
	} else {
		write(9, fl.ContractAmount.String())
	}
	write(10, fl.ContractCurrency)
	write(11, fl.PaymentCurrency)
	write(12, fmt.Sprintf("%d/8", r.FieldsFound))
	write(13, r.PagesProcessed)
	write(14, r.OCRPages)
	write(15, truncate(r.ErrorMessage, 140))
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 1 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-1]) + "…"
}
