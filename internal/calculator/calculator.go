package calculator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	"github.com/shopspring/decimal"
)

// Calculator implements the tiered waterfall allocation: a fixed anchor on
// tier 1, market-cap proportional tiers capped at the anchor weight with a
// single redistribution pass, and conditional overflow components that only
// activate when their trigger sibling is pinned at the ceiling.
type Calculator struct{}

func New() *Calculator {
	return &Calculator{}
}

// CalculateFund produces the complete weight result for one fund: every
// portfolio, every component, both categories. Portfolios are independent pure
// computations over the shared read-only observation.
func (c *Calculator) CalculateFund(ctx context.Context, fund model.Fund, obs model.MarketObservation) (model.WeightResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Calculator.CalculateFund"

	slog.Debug("CalculateFund start", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund.Name))

	result := model.WeightResult{Fund: fund.Name, Date: obs.Date}

	for _, portfolio := range fund.Portfolios {
		weights, warnings, err := c.calculatePortfolio(portfolio, fund, obs)
		if err != nil {
			return model.WeightResult{}, fmt.Errorf("portfolio %s: %w", portfolio.Name, err)
		}

		for _, comp := range fund.Components {
			row := model.WeightRow{
				Date:      obs.Date,
				Portfolio: portfolio.Name,
				Symbol:    comp.Symbol,
				Name:      comp.Name,
				Weight:    weights[comp.Symbol],
			}
			if ret, ok := obs.Return(comp.Symbol); ok {
				r := ret
				row.Return = &r
			}
			result.Rows = append(result.Rows, row)
		}

		result.CalcWarnings = append(result.CalcWarnings, warnings...)
	}

	slog.Debug("CalculateFund completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund.Name), slog.Int("rows", len(result.Rows)))

	return result, nil
}

// calculatePortfolio runs the waterfall for both categories and unions the maps.
func (c *Calculator) calculatePortfolio(p model.Portfolio, fund model.Fund, obs model.MarketObservation) (map[string]decimal.Decimal, []string, error) {
	weights := make(map[string]decimal.Decimal, len(fund.Components))
	var warnings []string

	for _, cat := range []model.Category{model.CategoryFixedIncome, model.CategoryEquity} {
		catWeights, catWarnings, err := calculateCategory(p, fund.ComponentsByCategory(cat), obs)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", cat, err)
		}
		for symbol, w := range catWeights {
			weights[symbol] = w
		}
		for _, warn := range catWarnings {
			warnings = append(warnings, fmt.Sprintf("%s %s: %s", p.Name, cat, warn))
		}
	}

	return weights, warnings, nil
}

// calculateCategory distributes the category's allocation across its tiers.
func calculateCategory(p model.Portfolio, components []model.Component, obs model.MarketObservation) (map[string]decimal.Decimal, []string, error) {
	alloc := p.Allocation(components[0].Category)
	ceiling := p.AnchorWeight

	weights := make(map[string]decimal.Decimal, len(components))
	var warnings []string

	// zero allocation: every component of the category sits at zero
	if alloc.IsZero() {
		for _, comp := range components {
			weights[comp.Symbol] = decimal.Zero
		}
		return weights, nil, nil
	}

	assigned := decimal.Zero
	var overflow []model.Component

	// fixed components first: they anchor the waterfall
	for _, comp := range components {
		if comp.Mode != model.WeightModeFixed {
			continue
		}
		w := comp.FixedWeight
		if w.IsZero() {
			w = p.AnchorWeight
		}
		weights[comp.Symbol] = w
		assigned = assigned.Add(w)
	}

	if assigned.GreaterThan(alloc) {
		return nil, nil, fmt.Errorf("%w: fixed %s > allocation %s", ErrNegativeAllocation, assigned, alloc)
	}

	for _, tier := range marketCapTiers(components) {
		remaining := alloc.Sub(assigned)

		if remaining.Sign() <= 0 {
			for _, comp := range tier.components {
				weights[comp.Symbol] = decimal.Zero
			}
			continue
		}

		tierWeights, tierWarnings, err := distributeTier(tier, remaining, ceiling, obs)
		if err != nil {
			return nil, nil, err
		}

		for symbol, w := range tierWeights {
			weights[symbol] = w
			assigned = assigned.Add(w)
		}
		warnings = append(warnings, tierWarnings...)
	}

	for _, comp := range components {
		if comp.Mode == model.WeightModeConditionalOverflow {
			overflow = append(overflow, comp)
		}
	}

	// conditional overflow last: it absorbs whatever the ceiling kept the
	// trigger component from taking
	for _, comp := range overflow {
		triggerWeight := weights[comp.OverflowTrigger]
		if triggerWeight.LessThan(ceiling) {
			weights[comp.Symbol] = decimal.Zero
			continue
		}
		w := alloc.Sub(assigned)
		if w.Sign() < 0 {
			w = decimal.Zero
		}
		weights[comp.Symbol] = w
		assigned = assigned.Add(w)
	}

	return weights, warnings, nil
}

type tierGroup struct {
	tier       int
	components []model.Component
}

// marketCapTiers groups the market-cap-weighted components by tier, ascending.
func marketCapTiers(components []model.Component) []tierGroup {
	byTier := make(map[int][]model.Component)
	for _, comp := range components {
		if comp.Mode != model.WeightModeMarketCap {
			continue
		}
		byTier[comp.Tier] = append(byTier[comp.Tier], comp)
	}

	tiers := make([]int, 0, len(byTier))
	for t := range byTier {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)

	res := make([]tierGroup, 0, len(tiers))
	for _, t := range tiers {
		res = append(res, tierGroup{tier: t, components: byTier[t]})
	}
	return res
}

// distributeTier assigns the tier's share of the remaining allocation
// proportionally to market cap, caps each component at the ceiling and
// redistributes the shortfall once among the non-capped members. The single
// pass is part of the output contract; it is not iterated to a fixed point.
func distributeTier(tier tierGroup, remaining, ceiling decimal.Decimal, obs model.MarketObservation) (map[string]decimal.Decimal, []string, error) {
	tierTotal := decimal.Zero
	caps := make(map[string]decimal.Decimal, len(tier.components))

	for _, comp := range tier.components {
		mcap, ok := obs.Cap(comp.Symbol)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingMarketData, comp.Symbol)
		}
		caps[comp.Symbol] = mcap
		tierTotal = tierTotal.Add(mcap)
	}

	if tierTotal.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: tier %d", ErrZeroTierMarketCap, tier.tier)
	}

	raw := make(map[string]decimal.Decimal, len(tier.components))
	weights := make(map[string]decimal.Decimal, len(tier.components))
	cappedSum := decimal.Zero

	for _, comp := range tier.components {
		w := remaining.Mul(caps[comp.Symbol].Div(tierTotal))
		raw[comp.Symbol] = w
		if w.GreaterThan(ceiling) {
			w = ceiling
		}
		weights[comp.Symbol] = w
		cappedSum = cappedSum.Add(w)
	}

	if cappedSum.GreaterThanOrEqual(remaining) {
		return weights, nil, nil
	}

	excess := remaining.Sub(cappedSum)

	nonCappedTotal := decimal.Zero
	var nonCapped []string
	for _, comp := range tier.components {
		if raw[comp.Symbol].LessThan(ceiling) {
			nonCapped = append(nonCapped, comp.Symbol)
			nonCappedTotal = nonCappedTotal.Add(weights[comp.Symbol])
		}
	}

	if len(nonCapped) == 0 {
		// every member pinned at the ceiling: the shortfall stays unabsorbed
		// at this tier and flows to deeper tiers through the remaining
		// allocation
		warning := fmt.Sprintf("tier %d: all components capped at %s, %s left unallocated", tier.tier, ceiling, excess)
		return weights, []string{warning}, nil
	}

	for _, symbol := range nonCapped {
		var share decimal.Decimal
		if nonCappedTotal.Sign() > 0 {
			share = excess.Mul(weights[symbol].Div(nonCappedTotal))
		} else {
			share = excess.Div(decimal.NewFromInt(int64(len(nonCapped))))
		}
		w := weights[symbol].Add(share)
		if w.GreaterThan(ceiling) {
			w = ceiling
		}
		weights[symbol] = w
	}

	return weights, nil, nil
}
