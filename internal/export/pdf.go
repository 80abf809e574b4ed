package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

// MaxPDFYears caps the yearly table in the PDF report so long projections
// still fit on one page.
const MaxPDFYears = 15

const disclaimer = "Haftungsausschluss: Diese Berechnung dient nur zu Informationszwecken. " +
	"Tatsächliche Ergebnisse können aufgrund von Marktbedingungen, Gebühren und Steuern abweichen. " +
	"Konsultieren Sie einen Finanzberater für professionelle Beratung."

// BuildPDF renders a calculation as an A4 report: title, overview table,
// the first years of the breakdown and a disclaimer.
func BuildPDF(req calculator.Request, res calculator.Result, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252 covers umlauts and the euro sign
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr("Zinseszins-Berechnung"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Erstellt am "+now.Format("02.01.2006")), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, tr("Berechnungsübersicht"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(90, 7, "Parameter", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 7, "Wert", "1", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(245, 245, 220)
	for _, entry := range summaryEntries(req, res, now) {
		pdf.CellFormat(90, 6, tr(entry.key), "1", 0, "L", true, 0, "")
		pdf.CellFormat(60, 6, tr(entry.value), "1", 1, "L", true, 0, "")
	}
	pdf.Ln(6)

	if len(res.YearlyBreakdown) > 0 {
		writeYearlyTable(pdf, tr, res.YearlyBreakdown)
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, tr(disclaimer), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeYearlyTable(pdf *fpdf.Fpdf, tr func(string) string, years []calculator.YearEntry) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, tr("Jährliche Entwicklung"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	widths := []float64{15, 34, 32, 32, 34, 23}
	headers := []string{"Jahr", "Startbetrag", "Einzahlungen", "Zinserträge", "Endbetrag", "Wachstum"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(255, 255, 255)
	writeTableRow(pdf, widths, headers, tr)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(245, 245, 220)
	if len(years) > MaxPDFYears {
		years = years[:MaxPDFYears]
	}
	for _, year := range years {
		writeTableRow(pdf, widths, []string{
			fmt.Sprintf("%d", year.Year),
			FormatCurrency(year.StartAmount),
			FormatCurrency(year.Contributions),
			FormatCurrency(year.Interest),
			FormatCurrency(year.EndAmount),
			FormatPercent(year.GrowthRate),
		}, tr)
	}
	pdf.Ln(6)
}

func writeTableRow(pdf *fpdf.Fpdf, widths []float64, cells []string, tr func(string) string) {
	for i, cell := range cells {
		ln := 0
		if i == len(cells)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 6, tr(cell), "1", ln, "C", true, 0, "")
	}
}
