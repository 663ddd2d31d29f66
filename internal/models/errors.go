package models

import "errors"

// Custom errors
var (
	ErrStrategyNameRequired = errors.New("strategy name is required")
	ErrUnknownStrategy      = errors.New("unknown strategy")
	ErrNoData               = errors.New("no candle data in range")
	ErrNotFound             = errors.New("record not found")
	ErrInvalidTimeframe     = errors.New("invalid timeframe")
)
