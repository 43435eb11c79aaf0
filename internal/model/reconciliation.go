package model

import "github.com/shopspring/decimal"

// WeightChange is one joined row of a day-over-day comparison. A side missing
// from the join carries weight zero.
type WeightChange struct {
	Key            string // portfolio_symbol
	PreviousWeight decimal.Decimal
	CurrentWeight  decimal.Decimal
	Change         decimal.Decimal // current - previous
}

// AbsChange returns |current - previous|.
func (c WeightChange) AbsChange() decimal.Decimal {
	return c.Change.Abs()
}

// ReconciliationReport lists economically significant day-over-day changes.
// Alerts are informational and never fail a run.
type ReconciliationReport struct {
	Alerts            []string
	Changes           []WeightChange
	NewComponents     []string
	RemovedComponents []string
}
