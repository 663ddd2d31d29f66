package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSide represents order direction
type OrderSide string

// Order sides
const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents order lifecycle state
type OrderStatus string

// Order statuses
const (
	OrderStatusNew    OrderStatus = "NEW"
	OrderStatusFilled OrderStatus = "FILLED"
)

// Order represents a simulated market order placed during a backtest
type Order struct {
	ID       uuid.UUID       `json:"id"`
	Symbol   string          `json:"symbol"`
	Side     OrderSide       `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Status   OrderStatus     `json:"status"`
	PlacedAt time.Time       `json:"placed_at"`
	FilledAt *time.Time      `json:"filled_at,omitempty"`
}

// Trade represents a completed round trip (entry plus exit)
type Trade struct {
	ID         uuid.UUID       `json:"id"`
	Symbol     string          `json:"symbol"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	Commission float64         `json:"commission"`
	ProfitLoss float64         `json:"profit_loss"`
}

// Return returns the trade's fractional return on the entry notional
func (t Trade) Return() float64 {
	notional, _ := t.EntryPrice.Mul(t.Quantity).Float64()
	if notional == 0 {
		return 0
	}
	return t.ProfitLoss / notional
}
