// Package export renders calculation results for download: German-formatted
// CSV, Excel and PDF attachments plus Google Sheets appends.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

// FormatCurrency renders an amount the German way: 1.234,56 €.
func FormatCurrency(d decimal.Decimal) string {
	return groupGerman(d.StringFixed(2)) + " €"
}

// FormatPercent renders a percentage with one decimal: 4,2%.
func FormatPercent(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(1), ".", ",", 1) + "%"
}

// FormatFrequency translates a compounding frequency for display.
func FormatFrequency(f calculator.Frequency) string {
	switch f {
	case calculator.Monthly:
		return "Monatlich"
	case calculator.Quarterly:
		return "Vierteljährlich"
	case calculator.Yearly:
		return "Jährlich"
	default:
		return string(f)
	}
}

// Filename builds the deterministic download name, e.g.
// Zinseszins-Berechnung_10k-EUR_10Jahre_2026-08-24.csv.
func Filename(format string, req calculator.Request, now time.Time) string {
	principalK := req.Principal.Div(decimal.NewFromInt(1000)).IntPart()
	return fmt.Sprintf("Zinseszins-Berechnung_%dk-EUR_%dJahre_%s.%s",
		principalK, req.Years, now.Format("2006-01-02"), format)
}

// groupGerman converts "1234567.89" into "1.234.567,89".
func groupGerman(fixed string) string {
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(digit)
	}

	return sign + b.String() + "," + fracPart
}
