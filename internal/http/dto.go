package http

import (
	"github.com/shopspring/decimal"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

// calculationRequest is the wire form of a calculation. Amounts arrive as
// JSON numbers and are converted to decimals at this boundary.
type calculationRequest struct {
	Principal         float64 `json:"principal"`
	MonthlyPayment    float64 `json:"monthly_payment"`
	AnnualRate        float64 `json:"annual_rate"`
	Years             int     `json:"years"`
	CompoundFrequency string  `json:"compound_frequency"`
}

func (r calculationRequest) toDomain() calculator.Request {
	frequency := calculator.Frequency(r.CompoundFrequency)
	if r.CompoundFrequency == "" {
		frequency = calculator.Monthly
	}
	return calculator.Request{
		Principal:      decimal.NewFromFloat(r.Principal),
		MonthlyPayment: decimal.NewFromFloat(r.MonthlyPayment),
		AnnualRate:     decimal.NewFromFloat(r.AnnualRate),
		Years:          r.Years,
		Frequency:      frequency,
	}
}

type yearlyEntryResponse struct {
	Year          int     `json:"year"`
	StartAmount   float64 `json:"start_amount"`
	Contributions float64 `json:"contributions"`
	Interest      float64 `json:"interest"`
	EndAmount     float64 `json:"end_amount"`
	GrowthRate    float64 `json:"growth_rate"`
}

type calculationResponse struct {
	FinalAmount        float64               `json:"final_amount"`
	TotalContributions float64               `json:"total_contributions"`
	TotalInterest      float64               `json:"total_interest"`
	AnnualReturn       float64               `json:"annual_return"`
	YearlyBreakdown    []yearlyEntryResponse `json:"yearly_breakdown"`
}

// toResponse converts engine decimals to floats. Values are already rounded
// to two decimal places, so the conversion is exact for the display range.
func toResponse(res calculator.Result) calculationResponse {
	breakdown := make([]yearlyEntryResponse, len(res.YearlyBreakdown))
	for i, entry := range res.YearlyBreakdown {
		breakdown[i] = yearlyEntryResponse{
			Year:          entry.Year,
			StartAmount:   entry.StartAmount.InexactFloat64(),
			Contributions: entry.Contributions.InexactFloat64(),
			Interest:      entry.Interest.InexactFloat64(),
			EndAmount:     entry.EndAmount.InexactFloat64(),
			GrowthRate:    entry.GrowthRate.InexactFloat64(),
		}
	}

	return calculationResponse{
		FinalAmount:        res.FinalAmount.InexactFloat64(),
		TotalContributions: res.TotalContributions.InexactFloat64(),
		TotalInterest:      res.TotalInterest.InexactFloat64(),
		AnnualReturn:       res.AnnualReturn.InexactFloat64(),
		YearlyBreakdown:    breakdown,
	}
}

type limitsResponse struct {
	MaxPrincipal         float64  `json:"max_principal"`
	MaxMonthlyPayment    float64  `json:"max_monthly_payment"`
	MaxAnnualRate        float64  `json:"max_annual_rate"`
	MaxYears             int      `json:"max_years"`
	SupportedFrequencies []string `json:"supported_frequencies"`
}

type consentRequest struct {
	Preferences    map[string]bool `json:"preferences"`
	ConsentVersion string          `json:"consent_version"`
	Language       string          `json:"language"`
}
