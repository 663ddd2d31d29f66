package backtest

import (
	"github.com/yourusername/quantgrid/internal/models"
)

// RunResult is the complete output of a single strategy run over one
// date range. It is the unit persisted by the checkpoint store.
type RunResult struct {
	Metrics     Metrics        `json:"metrics"`
	Orders      []models.Order `json:"orders"`
	Trades      []models.Trade `json:"trades"`
	EquityCurve EquityCurve    `json:"equity_curve"`
}

// FinalEquity returns the last equity value, or zero for an empty curve
func (r *RunResult) FinalEquity() float64 {
	if r == nil || len(r.EquityCurve) == 0 {
		return 0
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Value
}
