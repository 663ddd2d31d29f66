package strategy

import (
	"fmt"

	"github.com/yourusername/quantgrid/internal/models"
)

// NameSMACross is the registry name for the moving-average crossover strategy
const NameSMACross = "sma_cross"

// SMACross implements a simple moving-average crossover strategy.
// Strategy logic: buy when the fast SMA crosses above the slow SMA,
// sell when it crosses back below.
type SMACross struct {
	Fast int
	Slow int
}

// NewSMACross creates an SMA crossover strategy from config parameters
// (fast, slow; defaults 10/30)
func NewSMACross(cfg Config) (Strategy, error) {
	s := &SMACross{
		Fast: intParam(cfg.Params, "fast", 10),
		Slow: intParam(cfg.Params, "slow", 30),
	}
	if s.Fast <= 0 || s.Slow <= 0 {
		return nil, fmt.Errorf("sma periods must be positive")
	}
	if s.Fast >= s.Slow {
		return nil, fmt.Errorf("fast period %d must be below slow period %d", s.Fast, s.Slow)
	}
	return s, nil
}

// Name returns the strategy name
func (s *SMACross) Name() string { return NameSMACross }

// WarmupPeriod returns the candles needed before signals are meaningful
func (s *SMACross) WarmupPeriod() int { return s.Slow + 1 }

// OnCandle evaluates the crossover at index i
func (s *SMACross) OnCandle(series models.Series, i int) Signal {
	if i < s.Slow {
		return SignalHold
	}

	fastNow := sma(series, i, s.Fast)
	slowNow := sma(series, i, s.Slow)
	fastPrev := sma(series, i-1, s.Fast)
	slowPrev := sma(series, i-1, s.Slow)

	if fastPrev <= slowPrev && fastNow > slowNow {
		return SignalBuy
	}
	if fastPrev >= slowPrev && fastNow < slowNow {
		return SignalSell
	}
	return SignalHold
}

// Parameters returns strategy parameters for identity derivation and export
func (s *SMACross) Parameters() map[string]any {
	return map[string]any{
		"fast": s.Fast,
		"slow": s.Slow,
	}
}

// sma computes the simple moving average of closes over the window ending at i
func sma(series models.Series, i, period int) float64 {
	if i+1 < period {
		return 0
	}
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += series[j].Close
	}
	return sum / float64(period)
}
