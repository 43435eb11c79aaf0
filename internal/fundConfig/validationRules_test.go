package fundConfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "validation_rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestForFund_GlobalDefaults(t *testing.T) {
	set, err := LoadValidationRules(writeRules(t, `
global:
  ucits_cap: 19.25
`))
	require.NoError(t, err)

	rules, err := set.ForFund("any_fund")
	require.NoError(t, err)

	assert.True(t, rules.UcitsCap.Equal(decimal.NewFromFloat(19.25)))
	assert.True(t, rules.SumToleranceAbs.Equal(decimal.NewFromFloat(0.0001)))
	assert.True(t, rules.NearCapWarningMargin.Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, rules.ReconEnabled)
	assert.True(t, rules.ReconThresholdPct.Equal(decimal.NewFromFloat(5.0)))
}

func TestForFund_OverridesMergeOverGlobal(t *testing.T) {
	set, err := LoadValidationRules(writeRules(t, `
global:
  ucits_cap: 19.25
  sum_tolerance_abs: 0.001
  reconciliation:
    enabled: true
    change_threshold_pct: 5.0
fund_overrides:
  special_fund:
    ucits_cap: 10
    reconciliation:
      enabled: false
`))
	require.NoError(t, err)

	rules, err := set.ForFund("special_fund")
	require.NoError(t, err)

	assert.True(t, rules.UcitsCap.Equal(decimal.NewFromInt(10)))
	assert.True(t, rules.SumToleranceAbs.Equal(decimal.NewFromFloat(0.001)), "untouched global values survive the merge")
	assert.False(t, rules.ReconEnabled)
	assert.True(t, rules.ReconThresholdPct.Equal(decimal.NewFromFloat(5.0)))

	other, err := set.ForFund("other_fund")
	require.NoError(t, err)
	assert.True(t, other.UcitsCap.Equal(decimal.NewFromFloat(19.25)))
	assert.True(t, other.ReconEnabled)
}

func TestForFund_UcitsCapRequired(t *testing.T) {
	set, err := LoadValidationRules(writeRules(t, `
global:
  sum_tolerance_abs: 0.001
`))
	require.NoError(t, err)

	_, err = set.ForFund("any_fund")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ucits_cap is not configured")
}

func TestForFund_UcitsCapMustBePositive(t *testing.T) {
	set, err := LoadValidationRules(writeRules(t, `
global:
  ucits_cap: -1
`))
	require.NoError(t, err)

	_, err = set.ForFund("any_fund")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestLoadValidationRules_UnknownFieldRejected(t *testing.T) {
	_, err := LoadValidationRules(writeRules(t, `
global:
  ucits_caps: 19.25
`))
	require.Error(t, err)
}
