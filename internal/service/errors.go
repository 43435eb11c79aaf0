package service

import "errors"

var (
	ErrNoFundsMatched   = errors.New("error no funds matched the requested filter")
	ErrValidationFailed = errors.New("error validation failed")
)
