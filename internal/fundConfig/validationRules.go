package fundConfig

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ValidationRules are the effective rules for one fund after merging fund
// overrides over the global defaults.
type ValidationRules struct {
	UcitsCap             decimal.Decimal
	SumToleranceAbs      decimal.Decimal
	NearCapWarningMargin decimal.Decimal
	ReconEnabled         bool
	ReconThresholdPct    decimal.Decimal
}

type rulesFile struct {
	Global        rulesSchema            `yaml:"global"`
	FundOverrides map[string]rulesSchema `yaml:"fund_overrides"`
}

type rulesSchema struct {
	UcitsCap             *float64     `yaml:"ucits_cap"`
	SumToleranceAbs      *float64     `yaml:"sum_tolerance_abs"`
	NearCapWarningMargin *float64     `yaml:"near_cap_warning_margin"`
	Reconciliation       *reconSchema `yaml:"reconciliation"`
}

type reconSchema struct {
	Enabled            *bool    `yaml:"enabled"`
	ChangeThresholdPct *float64 `yaml:"change_threshold_pct"`
}

// RulesSet resolves per-fund validation rules from one loaded file.
type RulesSet struct {
	file rulesFile
}

// LoadValidationRules reads the validation rules file.
func LoadValidationRules(path string) (*RulesSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read validation rules: %w", err)
	}

	var file rulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse validation rules: %w", err)
	}

	return &RulesSet{file: file}, nil
}

// ForFund merges the fund's overrides over the global defaults. The UCITS cap
// has no built-in default: every fund must end up with one, either globally or
// via override.
func (s *RulesSet) ForFund(fund string) (ValidationRules, error) {
	rules := ValidationRules{
		SumToleranceAbs:      decimal.NewFromFloat(0.0001),
		NearCapWarningMargin: decimal.NewFromFloat(0.5),
		ReconEnabled:         true,
		ReconThresholdPct:    decimal.NewFromFloat(5.0),
	}

	capSet := false
	for _, schema := range []rulesSchema{s.file.Global, s.file.FundOverrides[fund]} {
		if schema.UcitsCap != nil {
			rules.UcitsCap = decimal.NewFromFloat(*schema.UcitsCap)
			capSet = true
		}
		if schema.SumToleranceAbs != nil {
			rules.SumToleranceAbs = decimal.NewFromFloat(*schema.SumToleranceAbs)
		}
		if schema.NearCapWarningMargin != nil {
			rules.NearCapWarningMargin = decimal.NewFromFloat(*schema.NearCapWarningMargin)
		}
		if schema.Reconciliation != nil {
			if schema.Reconciliation.Enabled != nil {
				rules.ReconEnabled = *schema.Reconciliation.Enabled
			}
			if schema.Reconciliation.ChangeThresholdPct != nil {
				rules.ReconThresholdPct = decimal.NewFromFloat(*schema.Reconciliation.ChangeThresholdPct)
			}
		}
	}

	if !capSet {
		return ValidationRules{}, fmt.Errorf("fund %s: ucits_cap is not configured (set it globally or in fund_overrides)", fund)
	}
	if rules.UcitsCap.Sign() <= 0 {
		return ValidationRules{}, fmt.Errorf("fund %s: ucits_cap must be positive, got %s", fund, rules.UcitsCap)
	}

	return rules, nil
}
