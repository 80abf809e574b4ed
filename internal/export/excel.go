package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

const (
	sheetSummary  = "Übersicht"
	sheetYearly   = "Jährliche Entwicklung"
	sheetFormulas = "Formeln"
)

// BuildExcel renders a calculation as an xlsx workbook with three sheets:
// the overview, the per-year table and a short formula legend.
func BuildExcel(req calculator.Request, res calculator.Result, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetYearly); err != nil {
		return nil, fmt.Errorf("add yearly sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetFormulas); err != nil {
		return nil, fmt.Errorf("add formula sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	setRow(f, sheetSummary, 1, "Parameter", "Wert")
	_ = f.SetCellStyle(sheetSummary, "A1", "B1", header)
	for i, entry := range summaryEntries(req, res, now) {
		setRow(f, sheetSummary, i+2, entry.key, entry.value)
	}
	_ = f.SetColWidth(sheetSummary, "A", "B", 28)

	setRow(f, sheetYearly, 1, "Jahr", "Startbetrag", "Einzahlungen", "Zinserträge", "Endbetrag", "Wachstum")
	_ = f.SetCellStyle(sheetYearly, "A1", "F1", header)
	for i, year := range res.YearlyBreakdown {
		setRow(f, sheetYearly, i+2,
			year.Year,
			FormatCurrency(year.StartAmount),
			FormatCurrency(year.Contributions),
			FormatCurrency(year.Interest),
			FormatCurrency(year.EndAmount),
			FormatPercent(year.GrowthRate),
		)
	}
	_ = f.SetColWidth(sheetYearly, "A", "F", 18)

	setRow(f, sheetFormulas, 1, "Formel", "Beschreibung")
	_ = f.SetCellStyle(sheetFormulas, "A1", "B1", header)
	for i, row := range [][2]string{
		{"Zinseszins-Formel", "A = P(1 + r/n)^(nt)"},
		{"A", "Endkapital"},
		{"P", "Startkapital"},
		{"r", "Zinssatz (dezimal)"},
		{"n", "Zinszahlungen pro Jahr"},
		{"t", "Anzahl Jahre"},
	} {
		setRow(f, sheetFormulas, i+2, row[0], row[1])
	}
	_ = f.SetColWidth(sheetFormulas, "A", "B", 24)

	if idx, err := f.GetSheetIndex(sheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			continue
		}
		_ = f.SetCellValue(sheet, cell, v)
	}
}
