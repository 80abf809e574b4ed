package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

// SheetsConfig configures the Google Sheets export target.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// SheetsTarget appends calculation exports to a configured spreadsheet
// using service-account credentials.
type SheetsTarget struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsTarget creates the export target. The service account must have
// write access to the spreadsheet.
func NewSheetsTarget(ctx context.Context, cfg SheetsConfig) (*SheetsTarget, error) {
	if cfg.SpreadsheetID == "" || cfg.SheetName == "" {
		return nil, errors.New("sheets export: spreadsheet ID and sheet name are required")
	}

	credentialsJSON := []byte(cfg.CredentialsJSON)
	if len(credentialsJSON) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, errors.New("sheets export: missing service account credentials")
		}
		var err error
		credentialsJSON, err = os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsTarget{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}, nil
}

// Append writes one calculation to the spreadsheet: a summary row followed
// by one row per year. Returns the range reference of the appended block.
func (t *SheetsTarget) Append(ctx context.Context, req calculator.Request, res calculator.Result, now time.Time) (string, error) {
	if t.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	values := make([][]any, 0, len(res.YearlyBreakdown)+2)
	values = append(values, []any{
		"Berechnung vom " + now.Format("02.01.2006"),
		FormatCurrency(req.Principal),
		FormatCurrency(req.MonthlyPayment),
		FormatPercent(req.AnnualRate),
		fmt.Sprintf("%d Jahre", req.Years),
		FormatFrequency(req.Frequency),
		FormatCurrency(res.FinalAmount),
		FormatPercent(res.AnnualReturn),
	})
	values = append(values, []any{
		"Jahr", "Startbetrag", "Einzahlungen", "Zinserträge", "Endbetrag", "Wachstum",
	})
	for _, year := range res.YearlyBreakdown {
		values = append(values, []any{
			year.Year,
			FormatCurrency(year.StartAmount),
			FormatCurrency(year.Contributions),
			FormatCurrency(year.Interest),
			FormatCurrency(year.EndAmount),
			FormatPercent(year.GrowthRate),
		})
	}

	rng := fmt.Sprintf("%s!A:H", t.sheetName)
	vr := &gsheet.ValueRange{Values: values}

	resp, err := t.svc.Spreadsheets.Values.Append(t.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", t.sheetName, err)
	}

	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}
