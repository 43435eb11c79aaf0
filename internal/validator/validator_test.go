package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/KotFed0t/fund_calc_pipeline/internal/fundConfig"
	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testRules() fundConfig.ValidationRules {
	return fundConfig.ValidationRules{
		UcitsCap:             dec("19.25"),
		SumToleranceAbs:      dec("0.0001"),
		NearCapWarningMargin: dec("0.5"),
	}
}

func testFund() model.Fund {
	return model.Fund{
		Name: "test_fund",
		Portfolios: []model.Portfolio{
			{Name: "P1", EquityAllocation: dec("60"), FixedIncomeAllocation: dec("40"), AnchorWeight: dec("19.25")},
		},
		Components: []model.Component{
			{Symbol: "CORE", Category: model.CategoryEquity, Tier: 1, Mode: model.WeightModeFixed},
			{Symbol: "MID", Category: model.CategoryEquity, Tier: 2, Mode: model.WeightModeMarketCap},
			{Symbol: "OVF", Category: model.CategoryEquity, Tier: 3, Mode: model.WeightModeConditionalOverflow, OverflowTrigger: "MID", CapExempt: true},
		},
	}
}

func resultWith(weights map[string]string) model.WeightResult {
	result := model.WeightResult{Fund: "test_fund", Date: "20260831"}
	for _, symbol := range []string{"CORE", "MID", "OVF"} {
		w, ok := weights[symbol]
		if !ok {
			continue
		}
		result.Rows = append(result.Rows, model.WeightRow{
			Date:      "20260831",
			Portfolio: "P1",
			Symbol:    symbol,
			Weight:    dec(w),
		})
	}
	return result
}

func TestValidateFund_Valid(t *testing.T) {
	v := New(testRules())

	validation := v.ValidateFund(context.Background(), testFund(), resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "18.5",
		"OVF":  "62.25",
	}))

	assert.True(t, validation.IsValid())
	assert.Empty(t, validation.Errors())

	require.Len(t, validation.Results, 1)
	metrics := validation.Results[0].Metrics
	assert.True(t, metrics.TotalWeight.Equal(dec("100")))
	assert.True(t, metrics.MaxWeight.Equal(dec("62.25")))
	assert.Equal(t, 3, metrics.ComponentCount)
}

func TestValidateFund_SumViolation(t *testing.T) {
	v := New(testRules())

	validation := v.ValidateFund(context.Background(), testFund(), resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "18.5",
		"OVF":  "61",
	}))

	assert.False(t, validation.IsValid())
	require.Len(t, validation.Errors(), 1)
	assert.Contains(t, validation.Errors()[0], "weight sum")
	assert.Contains(t, validation.Errors()[0], "!= 100%")
}

func TestValidateFund_SumWithinTolerance(t *testing.T) {
	v := New(testRules())

	validation := v.ValidateFund(context.Background(), testFund(), resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "18.5",
		"OVF":  "62.25005",
	}))

	assert.True(t, validation.IsValid())
}

func TestValidateFund_UcitsCapViolation(t *testing.T) {
	v := New(testRules())

	validation := v.ValidateFund(context.Background(), testFund(), resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "25",
		"OVF":  "55.75",
	}))

	assert.False(t, validation.IsValid())
	require.Len(t, validation.Errors(), 1)
	assert.Contains(t, validation.Errors()[0], "UCITS violation")
	assert.Contains(t, validation.Errors()[0], "MID")
	assert.NotContains(t, validation.Errors()[0], "OVF", "cap-exempt component must not be flagged")
}

func TestValidateFund_NegativeWeight(t *testing.T) {
	v := New(testRules())

	validation := v.ValidateFund(context.Background(), testFund(), resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "-2",
		"OVF":  "82.75",
	}))

	assert.False(t, validation.IsValid())

	found := false
	for _, e := range validation.Errors() {
		if strings.Contains(e, "negative weights") && strings.Contains(e, "MID") {
			found = true
		}
	}
	assert.True(t, found, "expected a negative weight error, got %v", validation.Errors())
}

func TestValidateFund_MissingComponent(t *testing.T) {
	v := New(testRules())

	validation := v.ValidateFund(context.Background(), testFund(), resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "80.75",
	}))

	assert.False(t, validation.IsValid())

	var missingErr string
	for _, e := range validation.Errors() {
		if strings.Contains(e, "missing weights") && strings.Contains(e, "OVF") {
			missingErr = e
		}
	}
	assert.NotEmpty(t, missingErr, "expected a missing component error, got %v", validation.Errors())
}

func TestValidateFund_NearCapWarning(t *testing.T) {
	v := New(testRules())

	validation := v.ValidateFund(context.Background(), testFund(), resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "19.0",
		"OVF":  "61.75",
	}))

	assert.True(t, validation.IsValid(), "near-cap is a warning, not an error")

	require.Len(t, validation.Warnings(), 1)
	assert.Contains(t, validation.Warnings()[0], "UCITS cap")
	assert.Contains(t, validation.Warnings()[0], "MID")
	assert.Contains(t, validation.Warnings()[0], "CORE", "weights exactly at the cap are also near it")
}

func TestValidateFund_RepeatedRunsMatch(t *testing.T) {
	v := New(testRules())
	fund := testFund()

	// sum error, cap breach and a near-cap warning all at once
	result := resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "25",
		"OVF":  "54.75",
	})

	first := v.ValidateFund(context.Background(), fund, result)
	second := v.ValidateFund(context.Background(), fund, result)

	require.NotEmpty(t, first.Errors())
	require.NotEmpty(t, first.Warnings())

	assert.Equal(t, first.Errors(), second.Errors())
	assert.Equal(t, first.Warnings(), second.Warnings())
	assert.Equal(t, first.IsValid(), second.IsValid())
}

func TestValidateFund_AllChecksReported(t *testing.T) {
	v := New(testRules())

	// one result carrying a sum error, a cap breach and a negative weight
	validation := v.ValidateFund(context.Background(), testFund(), resultWith(map[string]string{
		"CORE": "19.25",
		"MID":  "25",
		"OVF":  "-1",
	}))

	assert.False(t, validation.IsValid())
	assert.Len(t, validation.Errors(), 3)
}
