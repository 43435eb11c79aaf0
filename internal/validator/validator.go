package validator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/fund_calc_pipeline/internal/fundConfig"
	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	"github.com/shopspring/decimal"
)

// Validator checks a completed weight result against the UCITS concentration
// cap and internal consistency rules. It never mutates the result and always
// evaluates every check, so a single report carries all violations.
type Validator struct {
	rules fundConfig.ValidationRules
}

func New(rules fundConfig.ValidationRules) *Validator {
	return &Validator{rules: rules}
}

// ValidateFund validates every portfolio of the result independently.
func (v *Validator) ValidateFund(ctx context.Context, fund model.Fund, result model.WeightResult) model.FundValidation {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Validator.ValidateFund"

	slog.Debug("ValidateFund start", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund.Name))

	validation := model.FundValidation{}
	expected := fund.AllSymbols()

	capExempt := make(map[string]bool)
	for _, comp := range fund.Components {
		if comp.CapExempt {
			capExempt[comp.Symbol] = true
		}
	}

	for _, portfolio := range fund.Portfolios {
		rows := result.PortfolioRows(portfolio.Name)
		res := v.validatePortfolio(portfolio.Name, rows, expected, capExempt)
		validation.Results = append(validation.Results, res)
	}

	slog.Debug("ValidateFund completed",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("fund", fund.Name),
		slog.Bool("valid", validation.IsValid()),
	)

	return validation
}

func (v *Validator) validatePortfolio(portfolio string, rows []model.WeightRow, expected []string, capExempt map[string]bool) model.ValidationResult {
	res := model.ValidationResult{Portfolio: portfolio}

	hundred := decimal.NewFromInt(100)
	capLimit := v.rules.UcitsCap.Add(v.rules.SumToleranceAbs)
	nearCapFloor := v.rules.UcitsCap.Sub(v.rules.NearCapWarningMargin)

	present := make(map[string]model.WeightRow, len(rows))
	totalWeight := decimal.Zero
	maxWeight := decimal.Zero
	var capViolators, negative, nearCap []string

	for _, row := range rows {
		present[row.Symbol] = row
		totalWeight = totalWeight.Add(row.Weight)

		if row.Weight.GreaterThan(maxWeight) {
			maxWeight = row.Weight
		}

		if row.Weight.GreaterThan(capLimit) && !capExempt[row.Symbol] {
			capViolators = append(capViolators, row.Symbol)
		}

		if row.Weight.Sign() < 0 {
			negative = append(negative, row.Symbol)
		}

		if row.Weight.GreaterThan(nearCapFloor) && row.Weight.LessThanOrEqual(v.rules.UcitsCap) {
			nearCap = append(nearCap, row.Symbol)
		}
	}

	var missing []string
	for _, symbol := range expected {
		if _, ok := present[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}

	if totalWeight.Sub(hundred).Abs().GreaterThan(v.rules.SumToleranceAbs) {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"%s: weight sum %s%% != 100%% (tolerance: ±%s%%)",
			portfolio, totalWeight.StringFixed(model.WeightPrecision), v.rules.SumToleranceAbs,
		))
	}

	if len(capViolators) > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"%s: UCITS violation - %d positions exceed %s%%: %s",
			portfolio, len(capViolators), v.rules.UcitsCap, strings.Join(capViolators, ", "),
		))
	}

	if len(negative) > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"%s: negative weights found: %s", portfolio, strings.Join(negative, ", "),
		))
	}

	if len(missing) > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"%s: missing weights for: %s", portfolio, strings.Join(missing, ", "),
		))
	}

	if len(nearCap) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%s: positions within %s%% of UCITS cap: %s",
			portfolio, v.rules.NearCapWarningMargin, strings.Join(nearCap, ", "),
		))
	}

	res.IsValid = len(res.Errors) == 0
	res.Metrics = model.ValidationMetrics{
		TotalWeight:    totalWeight,
		MaxWeight:      maxWeight,
		ComponentCount: len(rows),
		NegativeCount:  len(negative),
		MissingCount:   len(missing),
	}

	return res
}
