package model

import "github.com/shopspring/decimal"

// ValidationMetrics is an observability snapshot taken during validation.
type ValidationMetrics struct {
	TotalWeight    decimal.Decimal
	MaxWeight      decimal.Decimal
	ComponentCount int
	NegativeCount  int
	MissingCount   int
}

// ValidationResult is the outcome of validating one portfolio's weights.
type ValidationResult struct {
	Portfolio string
	IsValid   bool
	Errors    []string
	Warnings  []string
	Metrics   ValidationMetrics
}

// FundValidation aggregates per-portfolio validation results for one fund.
type FundValidation struct {
	Results []ValidationResult
}

// IsValid reports whether every portfolio passed.
func (v FundValidation) IsValid() bool {
	for _, r := range v.Results {
		if !r.IsValid {
			return false
		}
	}
	return true
}

// Errors returns all portfolio errors in order.
func (v FundValidation) Errors() []string {
	var errs []string
	for _, r := range v.Results {
		errs = append(errs, r.Errors...)
	}
	return errs
}

// Warnings returns all portfolio warnings in order.
func (v FundValidation) Warnings() []string {
	var warns []string
	for _, r := range v.Results {
		warns = append(warns, r.Warnings...)
	}
	return warns
}
