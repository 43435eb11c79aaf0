package model

import "github.com/shopspring/decimal"

// Portfolio is one equity/fixed-income split profile of a fund (e.g. LSE80).
type Portfolio struct {
	Name                  string
	EquityAllocation      decimal.Decimal
	FixedIncomeAllocation decimal.Decimal
	AnchorWeight          decimal.Decimal
}

// Allocation returns the total allocation for one category of the portfolio.
func (p Portfolio) Allocation(cat Category) decimal.Decimal {
	if cat == CategoryEquity {
		return p.EquityAllocation
	}
	return p.FixedIncomeAllocation
}

// Fund groups portfolios sharing one component universe.
type Fund struct {
	Name       string
	Portfolios []Portfolio
	Components []Component
}

// ComponentsByCategory returns the fund's components of one category, tier order preserved.
func (f Fund) ComponentsByCategory(cat Category) []Component {
	res := make([]Component, 0, len(f.Components))
	for _, c := range f.Components {
		if c.Category == cat {
			res = append(res, c)
		}
	}
	return res
}

// MarketCapSymbols returns the unique symbols that need a market observation entry.
func (f Fund) MarketCapSymbols() []string {
	seen := make(map[string]struct{}, len(f.Components))
	res := make([]string, 0, len(f.Components))
	for _, c := range f.Components {
		if !c.RequiresMarketCap() {
			continue
		}
		if _, ok := seen[c.Symbol]; ok {
			continue
		}
		seen[c.Symbol] = struct{}{}
		res = append(res, c.Symbol)
	}
	return res
}

// AllSymbols returns every component symbol of the fund, duplicates removed.
func (f Fund) AllSymbols() []string {
	seen := make(map[string]struct{}, len(f.Components))
	res := make([]string, 0, len(f.Components))
	for _, c := range f.Components {
		if _, ok := seen[c.Symbol]; ok {
			continue
		}
		seen[c.Symbol] = struct{}{}
		res = append(res, c.Symbol)
	}
	return res
}
