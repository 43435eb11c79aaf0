package factsetModel

// RawTimeSeries is the flattened response of the formula time-series endpoint.
// Each row maps "requestId" to the symbol and each requested formula string to
// its value (float64 or nil when the formula produced no data).
type RawTimeSeries struct {
	Data []map[string]any `json:"data"`
}
