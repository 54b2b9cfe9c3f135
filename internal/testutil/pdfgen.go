// Package testutil builds small fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"strings"
)

// ContractPage is a full page of ordinary contract prose, several hundred
// characters long, for exercising text-layer checks on realistic pages.
const ContractPage = `This Agreement is made between First Commercial Bank, hereinafter the Bank,
and Northwind Trading LLC, hereinafter the Buyer. The Bank agrees to provide
financing for the purchase of industrial equipment delivered from Germany.
The total contract amount is 1,250,000.00 USD payable in euros at the exchange
rate fixed on the date of each payment. Delivery shall be completed within
ninety days after the advance payment is received. The Buyer shall insure the
goods against loss or damage during transportation and storage. Any dispute
arising under this Agreement shall be settled by arbitration in accordance
with the rules in force on the date of filing. This Agreement expires on
31 December 2025.`

// BuildPDF returns a minimal PDF with one page per entry. Each entry is
// drawn as Helvetica 12pt lines starting at the top-left margin; an empty
// entry yields a page without a text layer.
func BuildPDF(pages ...string) []byte {
	var objs []string
	// 1 catalog, 2 pages, 3 font, then a page/content pair per page
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))

	widths := make([]string, 95)
	for i := range widths {
		widths[i] = "500"
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /FirstChar 32 /LastChar 126 /Widths [%s] >>", strings.Join(widths, " ")))

	for i, text := range pages {
		content := contentStream(text)
		objs = append(objs, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func contentStream(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	y := 740
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&b, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", y, escape(line))
		y -= 16
	}
	return strings.TrimRight(b.String(), "\n")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
