package models

import (
	"fmt"
	"time"
)

// Timeframe represents a candle aggregation interval
type Timeframe string

// Supported timeframes
const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the length of one candle for this timeframe
func (t Timeframe) Duration() (time.Duration, error) {
	switch t {
	case Timeframe1m:
		return time.Minute, nil
	case Timeframe5m:
		return 5 * time.Minute, nil
	case Timeframe15m:
		return 15 * time.Minute, nil
	case Timeframe1h:
		return time.Hour, nil
	case Timeframe4h:
		return 4 * time.Hour, nil
	case Timeframe1d:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %s", t)
	}
}

// IsValid reports whether the timeframe is one of the supported intervals
func (t Timeframe) IsValid() bool {
	_, err := t.Duration()
	return err == nil
}

// Candle represents a single OHLCV bar
type Candle struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered sequence of candles for one symbol/timeframe
type Series []Candle

// Validate checks that the series is strictly ordered by time
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return fmt.Errorf("series not strictly ordered at index %d: %s >= %s",
				i, s[i-1].Time.Format(time.RFC3339), s[i].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Slice returns the candles within the half-open interval [start, end)
func (s Series) Slice(start, end time.Time) Series {
	out := make(Series, 0, len(s))
	for _, c := range s {
		if c.Time.Before(start) {
			continue
		}
		if !c.Time.Before(end) {
			break
		}
		out = append(out, c)
	}
	return out
}

// Closes returns the close prices of the series
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, c := range s {
		closes[i] = c.Close
	}
	return closes
}
