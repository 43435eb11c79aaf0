package model

import "time"

// RunStatus is the final outcome of one fund's calculation.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// RunResult is the per-fund record handed to the notifier.
type RunResult struct {
	Fund       string
	Status     RunStatus
	Runtime    time.Duration
	OutputPath string
	Warnings   []string // calculation and validation warnings
	Alerts     []string // reconciliation alerts
	Error      string   // set when Status == RunStatusFailed
}

// Attachment is a generated file sent along with the summary email.
type Attachment struct {
	Filename string
	Data     []byte
}

// Metadata is the JSON record persisted alongside each versioned artifact.
type Metadata struct {
	Fund             string    `json:"fund"`
	CalculationDate  string    `json:"calculation_date"`
	RunTimestamp     time.Time `json:"run_timestamp"`
	Version          string    `json:"version"`
	RuntimeSeconds   float64   `json:"runtime_seconds"`
	ValidationStatus string    `json:"validation_status"`
	PortfolioCount   int       `json:"portfolio_count"`
	RowCount         int       `json:"row_count"`
}
