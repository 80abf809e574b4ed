package export

import (
	"time"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

// PreviewData is the formatted content every file export is rendered from,
// for clients that want to show it before downloading.
type PreviewData struct {
	Summary    map[string]string `json:"summary"`
	YearlyData []map[string]any  `json:"yearly_data"`
}

// BuildPreview assembles the export content without rendering a file.
func BuildPreview(req calculator.Request, res calculator.Result, now time.Time) PreviewData {
	entries := summaryEntries(req, res, now)
	summary := make(map[string]string, len(entries))
	for _, entry := range entries {
		summary[entry.key] = entry.value
	}

	yearly := make([]map[string]any, 0, len(res.YearlyBreakdown))
	for _, year := range res.YearlyBreakdown {
		yearly = append(yearly, map[string]any{
			"Jahr":         year.Year,
			"Startbetrag":  FormatCurrency(year.StartAmount),
			"Einzahlungen": FormatCurrency(year.Contributions),
			"Zinserträge":  FormatCurrency(year.Interest),
			"Endbetrag":    FormatCurrency(year.EndAmount),
			"Wachstum":     FormatPercent(year.GrowthRate),
		})
	}

	return PreviewData{Summary: summary, YearlyData: yearly}
}
