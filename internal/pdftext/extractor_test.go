package pdftext

import (
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/testutil"
)

func TestLayoutOrdersRowsAndInsertsSpaces(t *testing.T) {
	glyphs := []pdf.Text{
		// second row, out of order
		{X: 130, Y: 700, W: 6, FontSize: 12, S: "B"},
		{X: 72, Y: 700, W: 6, FontSize: 12, S: "A"},
		// first row: "No." then a gap then "7"
		{X: 72, Y: 720, W: 6, FontSize: 12, S: "N"},
		{X: 78, Y: 720.5, W: 6, FontSize: 12, S: "o"},
		{X: 84, Y: 720, W: 3, FontSize: 12, S: "."},
		{X: 93, Y: 719.8, W: 6, FontSize: 12, S: "7"},
		{X: 0, Y: 0, S: "\n"},
	}
	got := Layout(glyphs, DefaultLayoutConfig())
	want := "No. 7\nA B"
	if got != want {
		t.Fatalf("Layout = %q, want %q", got, want)
	}
}

func TestLayoutParagraphBreak(t *testing.T) {
	glyphs := []pdf.Text{
		{X: 72, Y: 720, W: 6, FontSize: 10, S: "a"},
		{X: 72, Y: 650, W: 6, FontSize: 10, S: "b"},
	}
	if got := Layout(glyphs, DefaultLayoutConfig()); got != "a\n\nb" {
		t.Fatalf("Layout = %q", got)
	}
	if got := Layout(nil, DefaultLayoutConfig()); got != "" {
		t.Fatalf("Layout(nil) = %q", got)
	}
}

func TestOpenAndPageText(t *testing.T) {
	data := testutil.BuildPDF("Contract No. 123 dated 2024-01-10", "")
	rd, err := Open(data, DefaultLayoutConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if rd.NumPage() != 2 {
		t.Fatalf("NumPage = %d", rd.NumPage())
	}
	txt, err := rd.PageText(1)
	if err != nil {
		t.Fatalf("PageText(1): %v", err)
	}
	if txt != "Contract No. 123 dated 2024-01-10" {
		t.Fatalf("PageText(1) = %q", txt)
	}
	empty, err := rd.PageText(2)
	if err != nil {
		t.Fatalf("PageText(2): %v", err)
	}
	if empty != "" {
		t.Fatalf("PageText(2) = %q, want empty", empty)
	}
	if _, err := rd.PageText(3); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open([]byte("%PDF-1.4 this is not really a pdf"), DefaultLayoutConfig(), nil)
	if !errors.Is(err, common.ErrPDFUnreadable) {
		t.Fatalf("expected ErrPDFUnreadable, got %v", err)
	}
	_, err = Open(nil, DefaultLayoutConfig(), nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
