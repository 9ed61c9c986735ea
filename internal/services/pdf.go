package services

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// ExportFile is a rendered document ready to be streamed to a client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

const (
	contentTypePDF = "application/pdf"
	contentTypeCSV = "text/csv; charset=utf-8"
)

// pdfDoc wraps fpdf with the page setup and table helpers shared by the
// voucher and the sales reports.
type pdfDoc struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newPDF(title string) *pdfDoc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("cafeteria-backend", true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	return &pdfDoc{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *pdfDoc) heading(text string, size float64) {
	d.SetFont("Helvetica", "B", size)
	d.CellFormat(0, size/2+2, d.tr(text), "", 1, "L", false, 0, "")
}

func (d *pdfDoc) line(label, value string) {
	d.SetFont("Helvetica", "B", 11)
	d.CellFormat(45, 7, d.tr(label), "", 0, "L", false, 0, "")
	d.SetFont("Helvetica", "", 11)
	d.CellFormat(0, 7, d.tr(value), "", 1, "L", false, 0, "")
}

func (d *pdfDoc) divider() {
	left, _, right, _ := d.GetMargins()
	pageW, _ := d.GetPageSize()
	y := d.GetY() + 2
	d.Line(left, y, pageW-right, y)
	d.Ln(5)
}

// table draws a header row on a green band followed by the body rows.
func (d *pdfDoc) table(widths []float64, header []string, rows [][]string) {
	d.SetFillColor(209, 231, 221)
	d.SetFont("Helvetica", "B", 11)
	for i, h := range header {
		d.CellFormat(widths[i], 8, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.Ln(-1)
	d.SetFont("Helvetica", "", 11)
	for _, row := range rows {
		for i, cell := range row {
			d.CellFormat(widths[i], 8, d.tr(cell), "1", 0, "C", false, 0, "")
		}
		d.Ln(-1)
	}
}

func (d *pdfDoc) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
