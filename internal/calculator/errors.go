package calculator

import "errors"

var (
	ErrMissingMarketData  = errors.New("error no market data for component")
	ErrZeroTierMarketCap  = errors.New("error tier total market cap is zero")
	ErrNegativeAllocation = errors.New("error fixed weights exceed category allocation")
)
