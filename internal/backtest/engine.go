package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantgrid/internal/data"
	"github.com/yourusername/quantgrid/internal/models"
	"github.com/yourusername/quantgrid/internal/strategy"
)

// Engine executes a single strategy over a single date range. It fetches
// candles through a data provider, replays them through the strategy, and
// simulates long-only position management with commission and slippage.
type Engine struct {
	config   Config
	provider data.Provider
	registry *strategy.Registry
	logger   *logrus.Logger
}

// position tracks an open long during replay
type position struct {
	entryPrice float64
	entryTime  time.Time
	quantity   float64
}

// NewEngine creates a new backtesting engine
func NewEngine(cfg Config, provider data.Provider, registry *strategy.Registry, logger *logrus.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("data provider is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("strategy registry is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}

	return &Engine{
		config:   cfg,
		provider: provider,
		registry: registry,
		logger:   logger,
	}, nil
}

// Config returns the simulation configuration
func (e *Engine) Config() Config {
	return e.config
}

// Run executes one strategy configuration over [start, end) and returns
// the full result including metrics, orders, trades and equity curve.
func (e *Engine) Run(ctx context.Context, cfg strategy.Config, start, end time.Time) (*RunResult, error) {
	strat, err := e.registry.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"strategy": cfg.Label(),
		"start":    start.Format("2006-01-02"),
		"end":      end.Format("2006-01-02"),
	}).Debug("Starting backtest run")

	series, firstTradable, err := e.loadSeries(ctx, cfg, strat.WarmupPeriod(), start, end)
	if err != nil {
		return nil, err
	}

	state := NewState(e.config.InitialCapital, start)
	e.replay(series, firstTradable, strat, cfg, state)

	metrics := CalculateMetrics(state, e.config, start, end)
	metrics.StrategyID = cfg.UUID()
	metrics.ParameterHash = cfg.Identity().String()

	return &RunResult{
		Metrics:     metrics,
		Orders:      state.Orders,
		Trades:      state.Trades,
		EquityCurve: state.EquityCurve,
	}, nil
}

// loadSeries fetches candles including warmup history before start and
// returns the series plus the index of the first tradable candle.
func (e *Engine) loadSeries(ctx context.Context, cfg strategy.Config, warmup int, start, end time.Time) (models.Series, int, error) {
	candleDur, err := cfg.Timeframe.Duration()
	if err != nil {
		return nil, 0, err
	}
	warmupStart := start.Add(-time.Duration(warmup+1) * candleDur)
	series, err := e.provider.GetOHLCV(ctx, cfg.Symbol, cfg.Timeframe, warmupStart, end)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load candles: %w", err)
	}
	if len(series) == 0 {
		return nil, 0, models.ErrNoData
	}

	firstTradable := 0
	for i, candle := range series {
		if !candle.Time.Before(start) {
			firstTradable = i
			break
		}
	}
	if firstTradable < warmup {
		firstTradable = warmup
	}
	if firstTradable >= len(series) {
		return nil, 0, models.ErrNoData
	}
	return series, firstTradable, nil
}

// replay walks the series candle by candle and applies strategy signals
func (e *Engine) replay(series models.Series, first int, strat strategy.Strategy, cfg strategy.Config, state *State) {
	var open *position

	for i := first; i < len(series); i++ {
		signal := strat.OnCandle(series, i)
		candle := series[i]

		switch {
		case signal == strategy.SignalBuy && open == nil:
			open = e.openPosition(candle, cfg, state)
		case signal == strategy.SignalSell && open != nil:
			e.closePosition(candle, cfg, open, state)
			open = nil
		}
	}

	// Force-close at the end of the range so every run settles flat
	if open != nil {
		e.closePosition(series[len(series)-1], cfg, open, state)
	}
}

func (e *Engine) openPosition(candle models.Candle, cfg strategy.Config, state *State) *position {
	price := e.applySlippage(candle.Close, true)
	if price <= 0 {
		return nil
	}
	quantity := state.CurrentEquity / price
	if quantity <= 0 {
		return nil
	}

	state.RecordOrder(models.Order{
		ID:       uuid.New(),
		Symbol:   cfg.Symbol,
		Side:     models.OrderSideBuy,
		Price:    decimal.NewFromFloat(price),
		Quantity: decimal.NewFromFloat(quantity),
		Status:   models.OrderStatusFilled,
		PlacedAt: candle.Time,
		FilledAt: &candle.Time,
	})

	return &position{
		entryPrice: price,
		entryTime:  candle.Time,
		quantity:   quantity,
	}
}

func (e *Engine) closePosition(candle models.Candle, cfg strategy.Config, open *position, state *State) {
	price := e.applySlippage(candle.Close, false)

	state.RecordOrder(models.Order{
		ID:       uuid.New(),
		Symbol:   cfg.Symbol,
		Side:     models.OrderSideSell,
		Price:    decimal.NewFromFloat(price),
		Quantity: decimal.NewFromFloat(open.quantity),
		Status:   models.OrderStatusFilled,
		PlacedAt: candle.Time,
		FilledAt: &candle.Time,
	})

	gross := (price - open.entryPrice) * open.quantity
	commission := (open.entryPrice + price) * open.quantity * e.config.CommissionRate
	pnl := gross - commission

	state.RecordTrade(models.Trade{
		ID:         uuid.New(),
		Symbol:     cfg.Symbol,
		EntryPrice: decimal.NewFromFloat(open.entryPrice),
		ExitPrice:  decimal.NewFromFloat(price),
		Quantity:   decimal.NewFromFloat(open.quantity),
		EntryTime:  open.entryTime,
		ExitTime:   candle.Time,
		Commission: commission,
		ProfitLoss: pnl,
	})
}

// applySlippage worsens the fill price by the configured basis points
func (e *Engine) applySlippage(price float64, buying bool) float64 {
	if e.config.SlippageBps <= 0 {
		return price
	}
	adjustment := price * float64(e.config.SlippageBps) / 10000.0
	if buying {
		return price + adjustment
	}
	return price - adjustment
}
