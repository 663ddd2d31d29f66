package strategy

import (
	"github.com/yourusername/quantgrid/internal/models"
)

// Signal represents a trading decision emitted by a strategy for one candle
type Signal int

// Signal values
const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

// String returns a readable signal name
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Strategy defines the interface for candle-driven backtesting strategies.
// Implementations must be stateless across runs: all tunables come from the
// Config the strategy was constructed with, so a Config can be shipped to a
// worker and reconstructed there.
type Strategy interface {
	Name() string
	// WarmupPeriod returns the number of leading candles the strategy needs
	// before it starts emitting signals
	WarmupPeriod() int
	// OnCandle evaluates the candle at index i of the series and returns a signal.
	// Only candles at indexes <= i may be inspected.
	OnCandle(series models.Series, i int) Signal
	Parameters() map[string]any
}
