// Package calculator implements the compound-interest calculation engine.
//
// All monetary arithmetic uses decimal values to avoid binary floating-point
// rounding drift. The engine is a pure function of its inputs: no I/O, no
// shared state, safe for concurrent use.
package calculator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Frequency is how often interest is capitalized within a year.
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// Frequencies lists the supported compounding frequencies.
var Frequencies = []Frequency{Monthly, Quarterly, Yearly}

// PeriodsPerYear returns the number of compounding periods per year,
// or 0 for an unrecognized frequency.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case Yearly:
		return 1
	default:
		return 0
	}
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	return f.PeriodsPerYear() > 0
}

// Request holds the parameters of a single calculation.
// AnnualRate is a percentage (4.0 means 4% per year).
type Request struct {
	Principal      decimal.Decimal
	MonthlyPayment decimal.Decimal
	AnnualRate     decimal.Decimal
	Years          int
	Frequency      Frequency
}

// CacheKey returns a canonical string of the request parameters.
// Identical inputs produce identical keys, which together with the engine's
// determinism makes results safe to memoize.
func (r Request) CacheKey() string {
	return strings.Join([]string{
		r.Principal.String(),
		r.MonthlyPayment.String(),
		r.AnnualRate.String(),
		fmt.Sprintf("%d", r.Years),
		string(r.Frequency),
	}, "|")
}

// YearEntry is one row of the per-year ledger: capital at start and end of
// the year, contributions and interest earned during it, all rounded to two
// decimal places for display.
type YearEntry struct {
	Year          int
	StartAmount   decimal.Decimal
	Contributions decimal.Decimal
	Interest      decimal.Decimal
	EndAmount     decimal.Decimal
	GrowthRate    decimal.Decimal
}

// Result is the outcome of a calculation. Amounts are rounded half-up to
// two decimal places; AnnualReturn is a percentage.
type Result struct {
	FinalAmount        decimal.Decimal
	TotalContributions decimal.Decimal
	TotalInterest      decimal.Decimal
	AnnualReturn       decimal.Decimal
	YearlyBreakdown    []YearEntry
}

var (
	// ErrInvalidInput marks a request parameter outside its defined domain.
	ErrInvalidInput = errors.New("invalid calculation input")
	// ErrArithmetic marks a numeric operation that produced a
	// non-representable result. Unreachable with pre-validated ranges.
	ErrArithmetic = errors.New("arithmetic error")
)

// FieldError describes a single invalid request field with a stable code
// and a user-facing German message.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects all invalid fields of a request.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap makes errors.Is(err, ErrInvalidInput) work for callers.
func (v ValidationErrors) Unwrap() error {
	return ErrInvalidInput
}

// Limits bounds the accepted parameter ranges. They are passed explicitly
// at construction instead of being read from process-wide state.
type Limits struct {
	MaxPrincipal      decimal.Decimal
	MaxMonthlyPayment decimal.Decimal
	MaxAnnualRate     decimal.Decimal
	MaxYears          int
}

// DefaultLimits returns the limits of the public API.
func DefaultLimits() Limits {
	return Limits{
		MaxPrincipal:      decimal.NewFromInt(10_000_000),
		MaxMonthlyPayment: decimal.NewFromInt(50_000),
		MaxAnnualRate:     decimal.NewFromInt(20),
		MaxYears:          50,
	}
}

// Validate checks a request against the limits and returns one FieldError
// per violated constraint.
func (l Limits) Validate(r Request) ValidationErrors {
	var errs ValidationErrors

	if !r.Principal.IsPositive() {
		errs = append(errs, FieldError{
			Field:   "principal",
			Code:    "INVALID_PRINCIPAL",
			Message: "Das Startkapital muss größer als 0 € sein",
		})
	} else if r.Principal.GreaterThan(l.MaxPrincipal) {
		errs = append(errs, FieldError{
			Field:   "principal",
			Code:    "INVALID_PRINCIPAL",
			Message: fmt.Sprintf("Das Startkapital darf %s € nicht überschreiten", l.MaxPrincipal),
		})
	}

	if r.MonthlyPayment.IsNegative() {
		errs = append(errs, FieldError{
			Field:   "monthly_payment",
			Code:    "INVALID_MONTHLY_PAYMENT",
			Message: "Die monatliche Sparrate darf nicht negativ sein",
		})
	} else if r.MonthlyPayment.GreaterThan(l.MaxMonthlyPayment) {
		errs = append(errs, FieldError{
			Field:   "monthly_payment",
			Code:    "INVALID_MONTHLY_PAYMENT",
			Message: fmt.Sprintf("Die monatliche Sparrate darf %s € nicht überschreiten", l.MaxMonthlyPayment),
		})
	}

	if r.AnnualRate.IsNegative() {
		errs = append(errs, FieldError{
			Field:   "annual_rate",
			Code:    "INVALID_ANNUAL_RATE",
			Message: "Der Zinssatz darf nicht negativ sein",
		})
	} else if r.AnnualRate.GreaterThan(l.MaxAnnualRate) {
		errs = append(errs, FieldError{
			Field:   "annual_rate",
			Code:    "INVALID_ANNUAL_RATE",
			Message: fmt.Sprintf("Der Zinssatz darf %s %% nicht überschreiten", l.MaxAnnualRate),
		})
	}

	if r.Years < 1 {
		errs = append(errs, FieldError{
			Field:   "years",
			Code:    "INVALID_YEARS",
			Message: "Die Laufzeit muss mindestens 1 Jahr betragen",
		})
	} else if r.Years > l.MaxYears {
		errs = append(errs, FieldError{
			Field:   "years",
			Code:    "INVALID_YEARS",
			Message: fmt.Sprintf("Die Laufzeit darf %d Jahre nicht überschreiten", l.MaxYears),
		})
	}

	if !r.Frequency.Valid() {
		errs = append(errs, FieldError{
			Field:   "compound_frequency",
			Code:    "INVALID_FREQUENCY",
			Message: "Zinseszins-Häufigkeit muss einer der folgenden Werte sein: monthly, quarterly, yearly",
		})
	}

	return errs
}
