package fundConfig

import (
	"bytes"
	"fmt"
	"os"

	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// file schema; converted to model types after validation so the calculator
// never touches raw YAML structures.

type fundsFile struct {
	Funds []fundSchema `yaml:"funds"`
}

type fundSchema struct {
	Name       string            `yaml:"name"`
	Portfolios []portfolioSchema `yaml:"portfolios"`
	Categories categoriesSchema  `yaml:"categories"`
}

type portfolioSchema struct {
	Name                  string   `yaml:"name"`
	EquityAllocation      float64  `yaml:"equity_allocation"`
	FixedIncomeAllocation float64  `yaml:"fixed_income_allocation"`
	AnchorWeight          *float64 `yaml:"anchor_weight"` // nil -> fund default
}

type categoriesSchema struct {
	AnchorWeight float64      `yaml:"anchor_weight"`
	FixedIncome  []tierSchema `yaml:"fixed_income"`
	Equity       []tierSchema `yaml:"equity"`
}

type tierSchema struct {
	Tier       int               `yaml:"tier"`
	Components []componentSchema `yaml:"components"`
}

type componentSchema struct {
	Symbol          string   `yaml:"symbol"`
	Name            string   `yaml:"name"`
	Mode            string   `yaml:"mode"`
	FixedWeight     *float64 `yaml:"fixed_weight"`
	CapExempt       bool     `yaml:"cap_exempt"`
	OverflowTrigger string   `yaml:"overflow_trigger"`
}

// LoadFunds reads and validates the funds configuration file. Unknown YAML
// fields are rejected so typos fail the run before any calculation starts.
func LoadFunds(path string) ([]model.Fund, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read funds config: %w", err)
	}

	var file fundsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse funds config: %w", err)
	}

	if len(file.Funds) == 0 {
		return nil, fmt.Errorf("funds config %s: no funds defined", path)
	}

	funds := make([]model.Fund, 0, len(file.Funds))
	for _, fs := range file.Funds {
		fund, err := buildFund(fs)
		if err != nil {
			return nil, fmt.Errorf("fund %s: %w", fs.Name, err)
		}
		funds = append(funds, fund)
	}

	return funds, nil
}

func buildFund(fs fundSchema) (model.Fund, error) {
	if fs.Name == "" {
		return model.Fund{}, fmt.Errorf("fund name is required")
	}
	if len(fs.Portfolios) == 0 {
		return model.Fund{}, fmt.Errorf("at least one portfolio is required")
	}

	defaultAnchor := decimal.NewFromFloat(fs.Categories.AnchorWeight)
	if defaultAnchor.Sign() <= 0 {
		return model.Fund{}, fmt.Errorf("anchor_weight must be positive, got %s", defaultAnchor)
	}

	fund := model.Fund{Name: fs.Name}

	for _, ps := range fs.Portfolios {
		p, err := buildPortfolio(ps, defaultAnchor)
		if err != nil {
			return model.Fund{}, err
		}
		fund.Portfolios = append(fund.Portfolios, p)
	}

	var err error
	fund.Components, err = buildComponents(fs.Categories)
	if err != nil {
		return model.Fund{}, err
	}

	for _, p := range fund.Portfolios {
		if err := checkAnchorFits(p); err != nil {
			return model.Fund{}, err
		}
	}

	return fund, nil
}

func buildPortfolio(ps portfolioSchema, defaultAnchor decimal.Decimal) (model.Portfolio, error) {
	if ps.Name == "" {
		return model.Portfolio{}, fmt.Errorf("portfolio name is required")
	}

	p := model.Portfolio{
		Name:                  ps.Name,
		EquityAllocation:      decimal.NewFromFloat(ps.EquityAllocation),
		FixedIncomeAllocation: decimal.NewFromFloat(ps.FixedIncomeAllocation),
		AnchorWeight:          defaultAnchor,
	}
	if ps.AnchorWeight != nil {
		p.AnchorWeight = decimal.NewFromFloat(*ps.AnchorWeight)
		if p.AnchorWeight.Sign() <= 0 {
			return model.Portfolio{}, fmt.Errorf("portfolio %s: anchor_weight must be positive, got %s", ps.Name, p.AnchorWeight)
		}
	}

	hundred := decimal.NewFromInt(100)
	if !p.EquityAllocation.Add(p.FixedIncomeAllocation).Equal(hundred) {
		return model.Portfolio{}, fmt.Errorf(
			"portfolio %s: equity + fixed income allocations must sum to 100, got %s",
			ps.Name, p.EquityAllocation.Add(p.FixedIncomeAllocation),
		)
	}
	if p.EquityAllocation.Sign() < 0 || p.FixedIncomeAllocation.Sign() < 0 {
		return model.Portfolio{}, fmt.Errorf("portfolio %s: allocations must be non-negative", ps.Name)
	}

	return p, nil
}

func buildComponents(cs categoriesSchema) ([]model.Component, error) {
	var components []model.Component
	symbols := make(map[string]struct{})

	for _, in := range []struct {
		cat   model.Category
		tiers []tierSchema
	}{
		{model.CategoryFixedIncome, cs.FixedIncome},
		{model.CategoryEquity, cs.Equity},
	} {
		if len(in.tiers) == 0 {
			return nil, fmt.Errorf("category %s: no tiers defined", in.cat)
		}

		catComponents, err := buildCategory(in.cat, in.tiers, symbols)
		if err != nil {
			return nil, err
		}
		components = append(components, catComponents...)
	}

	return components, nil
}

func buildCategory(cat model.Category, tiers []tierSchema, symbols map[string]struct{}) ([]model.Component, error) {
	var components []model.Component
	catSymbols := make(map[string]struct{})
	tier1Fixed := 0
	capExempt := 0
	lastTier := 0

	for _, ts := range tiers {
		if ts.Tier <= lastTier {
			return nil, fmt.Errorf("category %s: tiers must be strictly ascending, got %d after %d", cat, ts.Tier, lastTier)
		}
		lastTier = ts.Tier

		if len(ts.Components) == 0 {
			return nil, fmt.Errorf("category %s tier %d: no components", cat, ts.Tier)
		}

		for _, comp := range ts.Components {
			c, err := buildComponent(cat, ts.Tier, comp)
			if err != nil {
				return nil, err
			}

			if _, ok := symbols[c.Symbol]; ok {
				return nil, fmt.Errorf("duplicate component symbol %s", c.Symbol)
			}
			symbols[c.Symbol] = struct{}{}
			catSymbols[c.Symbol] = struct{}{}

			if c.Mode == model.WeightModeFixed && ts.Tier == 1 {
				tier1Fixed++
			}
			if c.CapExempt {
				capExempt++
			}

			components = append(components, c)
		}
	}

	if tier1Fixed != 1 {
		return nil, fmt.Errorf("category %s: exactly one fixed tier-1 component required, got %d", cat, tier1Fixed)
	}
	if capExempt > 1 {
		return nil, fmt.Errorf("category %s: at most one cap-exempt component allowed, got %d", cat, capExempt)
	}

	// overflow triggers must reference a sibling inside the same category
	for _, c := range components {
		if c.Mode != model.WeightModeConditionalOverflow {
			continue
		}
		if _, ok := catSymbols[c.OverflowTrigger]; !ok {
			return nil, fmt.Errorf(
				"component %s: overflow_trigger %s not found in category %s",
				c.Symbol, c.OverflowTrigger, cat,
			)
		}
	}

	return components, nil
}

func buildComponent(cat model.Category, tier int, cs componentSchema) (model.Component, error) {
	if cs.Symbol == "" {
		return model.Component{}, fmt.Errorf("category %s tier %d: component symbol is required", cat, tier)
	}

	c := model.Component{
		Symbol:          cs.Symbol,
		Name:            cs.Name,
		Category:        cat,
		Tier:            tier,
		CapExempt:       cs.CapExempt,
		OverflowTrigger: cs.OverflowTrigger,
	}

	switch model.WeightMode(cs.Mode) {
	case model.WeightModeFixed:
		c.Mode = model.WeightModeFixed
		if cs.FixedWeight != nil {
			c.FixedWeight = decimal.NewFromFloat(*cs.FixedWeight)
			if c.FixedWeight.Sign() <= 0 {
				return model.Component{}, fmt.Errorf("component %s: fixed_weight must be positive", cs.Symbol)
			}
		}
	case model.WeightModeMarketCap:
		c.Mode = model.WeightModeMarketCap
	case model.WeightModeConditionalOverflow:
		c.Mode = model.WeightModeConditionalOverflow
		if cs.OverflowTrigger == "" {
			return model.Component{}, fmt.Errorf("component %s: conditional_overflow requires overflow_trigger", cs.Symbol)
		}
	default:
		return model.Component{}, fmt.Errorf("component %s: unknown mode %q", cs.Symbol, cs.Mode)
	}

	return c, nil
}

func checkAnchorFits(p model.Portfolio) error {
	for _, cat := range []model.Category{model.CategoryFixedIncome, model.CategoryEquity} {
		alloc := p.Allocation(cat)
		if alloc.IsZero() {
			continue
		}
		if p.AnchorWeight.GreaterThan(alloc) {
			return fmt.Errorf(
				"portfolio %s: anchor weight %s exceeds %s allocation %s",
				p.Name, p.AnchorWeight, cat, alloc,
			)
		}
	}
	return nil
}
