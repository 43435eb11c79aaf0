package model

import "github.com/shopspring/decimal"

// WeightPrecision is the number of decimal places weights carry in persisted artifacts.
const WeightPrecision = 9

// WeightRow is one component's weight inside one portfolio for one date.
type WeightRow struct {
	Date      string // YYYYMMDD
	Portfolio string
	Symbol    string
	Name      string
	Weight    decimal.Decimal
	Return    *decimal.Decimal // nil when no returns data was available
}

// Key identifies the row across runs: symbols repeat between portfolios, so the
// reconciliation join key includes the portfolio name.
func (r WeightRow) Key() string {
	return r.Portfolio + "_" + r.Symbol
}

// WeightResult is a complete fund result for one date: all rows across all
// portfolios. Rows keep configuration order (portfolio, then component).
type WeightResult struct {
	Fund string
	Date string
	Rows []WeightRow

	// CalcWarnings carries non-fatal calculator diagnostics, e.g. a tier whose
	// members were all simultaneously capped leaving allocation unabsorbed.
	CalcWarnings []string
}

// PortfolioRows returns the rows belonging to one portfolio.
func (r WeightResult) PortfolioRows(portfolio string) []WeightRow {
	rows := make([]WeightRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		if row.Portfolio == portfolio {
			rows = append(rows, row)
		}
	}
	return rows
}

// PortfolioNames returns the distinct portfolio names in row order.
func (r WeightResult) PortfolioNames() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0, 4)
	for _, row := range r.Rows {
		if _, ok := seen[row.Portfolio]; ok {
			continue
		}
		seen[row.Portfolio] = struct{}{}
		names = append(names, row.Portfolio)
	}
	return names
}
