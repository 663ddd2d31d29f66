package data

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/quantgrid/internal/models"
)

// Provider defines the interface for fetching OHLCV candle data from
// external sources. The backtest engine only depends on this capability:
// given a symbol, timeframe and date range, return an ordered series.
type Provider interface {
	// GetOHLCV retrieves candles for the half-open interval [start, end)
	GetOHLCV(ctx context.Context, symbol string, timeframe models.Timeframe, start, end time.Time) (models.Series, error)

	// Name returns the name of the provider
	Name() string
}

// ProviderError represents errors from data provider operations
type ProviderError struct {
	Provider string // provider name
	Code     string // error code (e.g., "rate_limit_exceeded")
	Message  string // error message
	Err      error  // underlying error
}

func (e ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + ": " + e.Code + ": " + e.Message
}

func (e ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeNotFound          = "not_found"
	ErrCodeInvalidData       = "invalid_data"
	ErrCodeNetworkError      = "network_error"
	ErrCodeServerError       = "server_error"
)

// Common errors
var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrInvalidData    = errors.New("invalid data format")
)

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, err error) ProviderError {
	return ProviderError{
		Provider: provider,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}
