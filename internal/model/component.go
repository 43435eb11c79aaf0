package model

import "github.com/shopspring/decimal"

// Category splits a portfolio into its two allocation buckets.
type Category string

const (
	CategoryFixedIncome Category = "fixed_income"
	CategoryEquity      Category = "equity"
)

// WeightMode defines how a component receives its weight.
type WeightMode string

const (
	// WeightModeFixed assigns the portfolio's anchor weight (or an explicit
	// fixed value) regardless of market data.
	WeightModeFixed WeightMode = "fixed"

	// WeightModeMarketCap distributes the tier's remaining allocation
	// proportionally to market capitalization.
	WeightModeMarketCap WeightMode = "market_cap"

	// WeightModeConditionalOverflow activates only when the trigger sibling
	// is pinned at the per-tier ceiling.
	WeightModeConditionalOverflow WeightMode = "conditional_overflow"
)

// Component is an atomic allocatable unit within one category and tier.
type Component struct {
	Symbol          string
	Name            string
	Category        Category
	Tier            int
	Mode            WeightMode
	FixedWeight     decimal.Decimal // used when Mode == WeightModeFixed, zero means "use anchor"
	CapExempt       bool            // at most one per category
	OverflowTrigger string          // sibling symbol, required for conditional overflow
}

// RequiresMarketCap reports whether the component needs a market observation entry.
func (c Component) RequiresMarketCap() bool {
	return c.Mode == WeightModeMarketCap
}
