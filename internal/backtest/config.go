package backtest

import (
	"fmt"
)

// Config holds simulation settings shared by every run
type Config struct {
	InitialCapital float64
	CommissionRate float64
	SlippageBps    int
	RiskFreeRate   float64
}

// DefaultConfig returns sensible simulation defaults
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		CommissionRate: 0.001,
		SlippageBps:    0,
		RiskFreeRate:   0.02,
	}
}

// Validate validates simulation config parameters
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if c.CommissionRate < 0 || c.CommissionRate > 0.1 {
		return fmt.Errorf("commission rate must be between 0 and 0.1")
	}
	if c.SlippageBps < 0 {
		return fmt.Errorf("slippage cannot be negative")
	}
	return nil
}
