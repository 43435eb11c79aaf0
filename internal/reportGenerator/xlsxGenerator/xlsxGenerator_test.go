package xlsxGenerator

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate_EmptyRuns(t *testing.T) {
	_, _, err := New().Generate(context.Background(), "20260831", nil, nil)
	assert.Error(t, err)
}

func TestGenerate_OneSheetPerFund(t *testing.T) {
	runs := []model.RunResult{
		{
			Fund:       "alpha_fund",
			Status:     model.RunStatusSuccess,
			Runtime:    2 * time.Second,
			OutputPath: "output/alpha.csv",
			Warnings:   []string{"something minor"},
			Alerts:     []string{"P1_AAA: 10.00% → 16.00% (Δ+6.00pp)"},
		},
		{Fund: "beta_fund", Status: model.RunStatusFailed, Runtime: time.Second, Error: "market data missing"},
	}
	weights := map[string]model.WeightResult{
		"alpha_fund": {
			Fund: "alpha_fund",
			Date: "20260831",
			Rows: []model.WeightRow{
				{Date: "20260831", Portfolio: "P1", Symbol: "AAA", Name: "Index A", Weight: decimal.NewFromFloat(19.25)},
				{Date: "20260831", Portfolio: "P1", Symbol: "BBB", Name: "Index B", Weight: decimal.NewFromFloat(80.75)},
			},
		},
	}

	data, ext, err := New().Generate(context.Background(), "20260831", runs, weights)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "1. alpha_fund")
	assert.Contains(t, sheets, "2. beta_fund")
	assert.NotContains(t, sheets, "Sheet1")

	status, err := f.GetCellValue("2. beta_fund", "B3")
	require.NoError(t, err)
	assert.Equal(t, "FAILED", status)

	symbol, err := f.GetCellValue("1. alpha_fund", "C9")
	require.NoError(t, err)
	assert.Equal(t, "AAA", symbol)

	// warnings and alerts land in their own sections below the weights
	warnLabel, err := f.GetCellValue("1. alpha_fund", "A12")
	require.NoError(t, err)
	assert.Equal(t, "warnings", warnLabel)

	alertLabel, err := f.GetCellValue("1. alpha_fund", "A15")
	require.NoError(t, err)
	assert.Equal(t, "reconciliation alerts", alertLabel)

	alert, err := f.GetCellValue("1. alpha_fund", "A16")
	require.NoError(t, err)
	assert.Equal(t, "P1_AAA: 10.00% → 16.00% (Δ+6.00pp)", alert)
}
