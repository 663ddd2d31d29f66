package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quantgrid/internal/models"
)

func seriesFromCloses(closes ...float64) models.Series {
	series := models.Series{}
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, c := range closes {
		series = append(series, models.Candle{Symbol: "TEST", Time: ts, Open: c, High: c, Low: c, Close: c, Volume: 1})
		ts = ts.Add(time.Hour)
	}
	return series
}

// TestSMACrossSignals tests buy on upward cross and sell on downward cross
func TestSMACrossSignals(t *testing.T) {
	strat, err := NewSMACross(Config{Params: map[string]any{"fast": 2, "slow": 3}})
	require.NoError(t, err)

	series := seriesFromCloses(10, 10, 10, 10, 14, 8, 8)

	// Before the slow window fills there is no signal
	assert.Equal(t, SignalHold, strat.OnCandle(series, 2))
	// Fast average jumps above slow on the spike
	assert.Equal(t, SignalBuy, strat.OnCandle(series, 4))
	// Still converging, no cross yet
	assert.Equal(t, SignalHold, strat.OnCandle(series, 5))
	// Fast average falls back below slow
	assert.Equal(t, SignalSell, strat.OnCandle(series, 6))
}

// TestSMAHelper tests the moving average window
func TestSMAHelper(t *testing.T) {
	series := seriesFromCloses(1, 2, 3, 4)
	assert.InDelta(t, 3.0, sma(series, 3, 3), 1e-9)
	assert.InDelta(t, 3.5, sma(series, 3, 2), 1e-9)
	// Window longer than available history
	assert.Equal(t, 0.0, sma(series, 1, 3))
}

// TestRSIReversionSignals tests oversold buys and overbought sells
func TestRSIReversionSignals(t *testing.T) {
	strat, err := NewRSIReversion(Config{Params: map[string]any{"period": 3}})
	require.NoError(t, err)

	rising := seriesFromCloses(10, 11, 12, 13, 14)
	assert.Equal(t, SignalHold, strat.OnCandle(rising, 2))
	assert.Equal(t, SignalSell, strat.OnCandle(rising, 4))

	falling := seriesFromCloses(14, 13, 12, 11, 10)
	assert.Equal(t, SignalBuy, strat.OnCandle(falling, 4))

	flat := seriesFromCloses(10, 10, 10, 10, 10)
	assert.Equal(t, SignalHold, strat.OnCandle(flat, 4))
}

// TestRSIHelper tests the indicator on a mixed window
func TestRSIHelper(t *testing.T) {
	series := seriesFromCloses(10, 11, 10, 12)
	// gains 3, losses 1 over the window
	assert.InDelta(t, 75.0, rsi(series, 3, 3), 1e-9)
	assert.Equal(t, 100.0, rsi(seriesFromCloses(1, 2, 3, 4), 3, 3))
	assert.Equal(t, 50.0, rsi(seriesFromCloses(5, 5, 5, 5), 3, 3))
}
