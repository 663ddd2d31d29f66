package strategy

import (
	"fmt"

	"github.com/yourusername/quantgrid/internal/models"
)

// NameRSIReversion is the registry name for the RSI mean-reversion strategy
const NameRSIReversion = "rsi_reversion"

// RSIReversion implements a mean-reversion strategy on the relative strength
// index: buy when RSI drops below the oversold level, sell when it rises
// above the overbought level.
type RSIReversion struct {
	Period     int
	Oversold   float64
	Overbought float64
}

// NewRSIReversion creates an RSI reversion strategy from config parameters
// (period, oversold, overbought; defaults 14/30/70)
func NewRSIReversion(cfg Config) (Strategy, error) {
	s := &RSIReversion{
		Period:     intParam(cfg.Params, "period", 14),
		Oversold:   floatParam(cfg.Params, "oversold", 30),
		Overbought: floatParam(cfg.Params, "overbought", 70),
	}
	if s.Period <= 1 {
		return nil, fmt.Errorf("rsi period must be greater than 1")
	}
	if s.Oversold >= s.Overbought {
		return nil, fmt.Errorf("oversold level %.1f must be below overbought level %.1f", s.Oversold, s.Overbought)
	}
	return s, nil
}

// Name returns the strategy name
func (s *RSIReversion) Name() string { return NameRSIReversion }

// WarmupPeriod returns the candles needed before signals are meaningful
func (s *RSIReversion) WarmupPeriod() int { return s.Period + 1 }

// OnCandle evaluates the RSI level at index i
func (s *RSIReversion) OnCandle(series models.Series, i int) Signal {
	if i < s.Period {
		return SignalHold
	}

	value := rsi(series, i, s.Period)
	if value < s.Oversold {
		return SignalBuy
	}
	if value > s.Overbought {
		return SignalSell
	}
	return SignalHold
}

// Parameters returns strategy parameters for identity derivation and export
func (s *RSIReversion) Parameters() map[string]any {
	return map[string]any{
		"period":     s.Period,
		"oversold":   s.Oversold,
		"overbought": s.Overbought,
	}
}

// rsi computes the relative strength index over the window ending at i
func rsi(series models.Series, i, period int) float64 {
	gains := 0.0
	losses := 0.0
	for j := i - period + 1; j <= i; j++ {
		change := series[j].Close - series[j-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}
