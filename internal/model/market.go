package model

import "github.com/shopspring/decimal"

// MarketObservation maps component symbols to market-capitalization values for
// one calculation date. It is built once per invocation and treated as
// read-only afterwards.
type MarketObservation struct {
	Date    string // YYYYMMDD
	Caps    map[string]decimal.Decimal
	Returns map[string]decimal.Decimal // optional, may be empty
}

// Cap returns the market cap for a symbol.
func (o MarketObservation) Cap(symbol string) (decimal.Decimal, bool) {
	v, ok := o.Caps[symbol]
	return v, ok
}

// Return returns the daily return for a symbol if one was fetched.
func (o MarketObservation) Return(symbol string) (decimal.Decimal, bool) {
	v, ok := o.Returns[symbol]
	return v, ok
}
