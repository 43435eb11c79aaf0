package externalApi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnection       = errors.New("error cannot reach market data api")
	ErrAuth             = errors.New("error invalid or expired api credentials")
	ErrDataNotAvailable = errors.New("error data not available for date")
)

// MissingDataError reports symbols the API returned null or no values for.
// A single missing value fails the whole fetch: the calculators require a
// complete observation.
type MissingDataError struct {
	Metric  string
	Symbols []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing %s data for: %s", e.Metric, strings.Join(e.Symbols, ", "))
}
