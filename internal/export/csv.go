package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

var hundred = decimal.NewFromInt(100)

// summaryEntry keeps the overview block ordered.
type summaryEntry struct {
	key   string
	value string
}

// BuildCSV renders a calculation as a downloadable CSV document: UTF-8 BOM,
// an overview block, then the per-year table. Every cell is quoted.
func BuildCSV(req calculator.Request, res calculator.Result, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("\uFEFF") // BOM so spreadsheet apps pick up UTF-8

	b.WriteString("ZINSESZINS-BERECHNUNG ÜBERSICHT\n\n")
	for _, entry := range summaryEntries(req, res, now) {
		writeRow(&b, entry.key, entry.value)
	}

	b.WriteString("\n\nJÄHRLICHE ENTWICKLUNG\n\n")
	writeRow(&b, "Jahr", "Startbetrag", "Einzahlungen", "Zinserträge", "Endbetrag", "Wachstum")
	for _, year := range res.YearlyBreakdown {
		writeRow(&b,
			fmt.Sprintf("%d", year.Year),
			FormatCurrency(year.StartAmount),
			FormatCurrency(year.Contributions),
			FormatCurrency(year.Interest),
			FormatCurrency(year.EndAmount),
			FormatPercent(year.GrowthRate),
		)
	}

	return []byte(b.String())
}

func summaryEntries(req calculator.Request, res calculator.Result, now time.Time) []summaryEntry {
	totalReturn := decimal.Zero
	if res.TotalContributions.IsPositive() {
		totalReturn = res.FinalAmount.Sub(res.TotalContributions).
			Div(res.TotalContributions).Mul(hundred)
	}

	return []summaryEntry{
		{"Startkapital", FormatCurrency(req.Principal)},
		{"Monatliche Sparrate", FormatCurrency(req.MonthlyPayment)},
		{"Zinssatz", FormatPercent(req.AnnualRate)},
		{"Laufzeit", fmt.Sprintf("%d Jahre", req.Years)},
		{"Zinszahlungsfrequenz", FormatFrequency(req.Frequency)},
		{"Endkapital", FormatCurrency(res.FinalAmount)},
		{"Eingezahlt gesamt", FormatCurrency(res.TotalContributions)},
		{"Zinserträge", FormatCurrency(res.TotalInterest)},
		{"Gesamtrendite", FormatPercent(totalReturn)},
		{"Jährliche Rendite", FormatPercent(res.AnnualReturn)},
		{"Berechnet am", now.Format("02.01.2006")},
	}
}

// writeRow emits one CSV line with every cell quoted.
func writeRow(b *strings.Builder, cells ...string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}
