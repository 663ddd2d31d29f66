package backtest

import (
	"time"

	"github.com/yourusername/quantgrid/internal/models"
)

// State tracks the evolving account during a single backtest run
type State struct {
	CurrentEquity float64
	PeakEquity    float64
	Orders        []models.Order
	Trades        []models.Trade
	EquityCurve   EquityCurve
}

// NewState initializes run state with the starting capital
func NewState(initialCapital float64, start time.Time) *State {
	state := &State{
		CurrentEquity: initialCapital,
		PeakEquity:    initialCapital,
		Orders:        []models.Order{},
		Trades:        []models.Trade{},
	}
	state.RecordEquityPoint(start, initialCapital)
	return state
}

// RecordOrder appends a filled order
func (s *State) RecordOrder(order models.Order) {
	s.Orders = append(s.Orders, order)
}

// RecordTrade applies a settled trade's PnL and records it
func (s *State) RecordTrade(trade models.Trade) {
	s.CurrentEquity += trade.ProfitLoss
	if s.CurrentEquity > s.PeakEquity {
		s.PeakEquity = s.CurrentEquity
	}
	s.Trades = append(s.Trades, trade)
	s.RecordEquityPoint(trade.ExitTime, s.CurrentEquity)
}

// GetCurrentDrawdown calculates peak-to-trough drawdown
func (s *State) GetCurrentDrawdown() float64 {
	if s.PeakEquity == 0 {
		return 0
	}
	drawdown := (s.PeakEquity - s.CurrentEquity) / s.PeakEquity
	if drawdown < 0 {
		return 0
	}
	return drawdown
}

// RecordEquityPoint adds an equity point to the curve
func (s *State) RecordEquityPoint(t time.Time, value float64) {
	drawdown := 0.0
	if value < s.PeakEquity && s.PeakEquity > 0 {
		drawdown = (s.PeakEquity - value) / s.PeakEquity
	}

	s.EquityCurve = append(s.EquityCurve, EquityPoint{
		Time:     t,
		Value:    value,
		Drawdown: drawdown,
	})
}
