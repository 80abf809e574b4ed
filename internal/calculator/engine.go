package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	one           = decimal.NewFromInt(1)
	monthsPerYear = decimal.NewFromInt(12)
	hundred       = decimal.NewFromInt(100)
)

const (
	displayScale   = 2  // cents, the precision of every emitted amount
	powerPrecision = 12 // decimal digits kept by the CAGR exponentiation
)

// Engine computes compound-interest projections. It carries no state beyond
// its limits and is safe for concurrent use.
type Engine struct {
	limits Limits
}

// New creates an engine with the given limits.
func New(limits Limits) *Engine {
	return &Engine{limits: limits}
}

// Limits returns the configured parameter limits.
func (e *Engine) Limits() Limits {
	return e.limits
}

// Calculate runs a full projection for the request.
//
// Contribution timing is a behavioral contract kept for compatibility with
// existing consumers: with monthly compounding the monthly payment is added
// before the interest accrual of each month; with quarterly or yearly
// compounding the whole annual contribution is added once at the end of the
// year, after all accruals. Unrounded values are carried across years,
// rounding happens only on the emitted figures.
func (e *Engine) Calculate(req Request) (Result, error) {
	if errs := e.limits.Validate(req); len(errs) > 0 {
		return Result{}, errs
	}

	years := decimal.NewFromInt(int64(req.Years))
	totalContributions := req.Principal.Add(req.MonthlyPayment.Mul(monthsPerYear).Mul(years))

	annualRate := req.AnnualRate.Div(hundred)
	if annualRate.IsZero() {
		return e.zeroRateResult(req, totalContributions), nil
	}

	periodsPerYear := req.Frequency.PeriodsPerYear()
	ratePerPeriod := annualRate.Div(decimal.NewFromInt(int64(periodsPerYear)))

	annualContribution := req.MonthlyPayment.Mul(monthsPerYear)
	contributeMonthly := req.Frequency == Monthly && req.MonthlyPayment.IsPositive()
	contributeYearEnd := req.Frequency != Monthly && req.MonthlyPayment.IsPositive()

	current := req.Principal
	breakdown := make([]YearEntry, 0, req.Years)

	for year := 1; year <= req.Years; year++ {
		startAmount := current
		yearContributions := decimal.Zero
		yearInterest := decimal.Zero

		for period := 0; period < periodsPerYear; period++ {
			if contributeMonthly {
				current = current.Add(req.MonthlyPayment)
				yearContributions = yearContributions.Add(req.MonthlyPayment)
			}
			periodInterest := current.Mul(ratePerPeriod)
			current = current.Add(periodInterest)
			yearInterest = yearInterest.Add(periodInterest)
		}

		if contributeYearEnd {
			current = current.Add(annualContribution)
			yearContributions = yearContributions.Add(annualContribution)
		}

		breakdown = append(breakdown, newYearEntry(year, startAmount, yearContributions, yearInterest, current))
	}

	finalAmount := current
	totalInterest := finalAmount.Sub(totalContributions)

	annualReturn, err := annualizedReturn(finalAmount, totalContributions, req.Years)
	if err != nil {
		return Result{}, err
	}

	return Result{
		FinalAmount:        finalAmount.Round(displayScale),
		TotalContributions: totalContributions.Round(displayScale),
		TotalInterest:      totalInterest.Round(displayScale),
		AnnualReturn:       annualReturn.Round(displayScale),
		YearlyBreakdown:    breakdown,
	}, nil
}

// zeroRateResult handles the no-interest case: contributions accumulate
// linearly and the total interest is exactly zero.
func (e *Engine) zeroRateResult(req Request, totalContributions decimal.Decimal) Result {
	annualContribution := req.MonthlyPayment.Mul(monthsPerYear)
	current := req.Principal
	breakdown := make([]YearEntry, 0, req.Years)

	for year := 1; year <= req.Years; year++ {
		startAmount := current
		current = current.Add(annualContribution)
		breakdown = append(breakdown, newYearEntry(year, startAmount, annualContribution, decimal.Zero, current))
	}

	return Result{
		FinalAmount:        current.Round(displayScale),
		TotalContributions: totalContributions.Round(displayScale),
		TotalInterest:      decimal.Zero.Round(displayScale),
		AnnualReturn:       decimal.Zero.Round(displayScale),
		YearlyBreakdown:    breakdown,
	}
}

func newYearEntry(year int, startAmount, contributions, interest, endAmount decimal.Decimal) YearEntry {
	growth := decimal.Zero
	if startAmount.IsPositive() {
		growth = endAmount.Sub(startAmount).Div(startAmount).Mul(hundred)
	}
	return YearEntry{
		Year:          year,
		StartAmount:   startAmount.Round(displayScale),
		Contributions: contributions.Round(displayScale),
		Interest:      interest.Round(displayScale),
		EndAmount:     endAmount.Round(displayScale),
		GrowthRate:    growth.Round(displayScale),
	}
}

// annualizedReturn derives a CAGR-style yearly rate from the ratio of final
// amount to total contributions. The base deliberately conflates principal
// and later contributions, matching the published API figures.
func annualizedReturn(finalAmount, totalContributions decimal.Decimal, years int) (decimal.Decimal, error) {
	if !totalContributions.IsPositive() || years <= 0 {
		return decimal.Zero, nil
	}
	ratio := finalAmount.Div(totalContributions)
	if !ratio.IsPositive() {
		return decimal.Zero, fmt.Errorf("annualized return of ratio %s: %w", ratio, ErrArithmetic)
	}
	exponent := one.Div(decimal.NewFromInt(int64(years)))
	grown, err := ratio.PowWithPrecision(exponent, powerPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("annualized return: %w", ErrArithmetic)
	}
	return grown.Sub(one).Mul(hundred), nil
}
