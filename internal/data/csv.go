package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantgrid/internal/models"
)

// CSVProvider serves candles from per-symbol CSV files on disk.
// Files are named <symbol>_<timeframe>.csv with a
// time,open,high,low,close,volume header; timestamps are RFC3339 or unix
// seconds.
type CSVProvider struct {
	dir    string
	logger *logrus.Logger
}

// NewCSVProvider creates a provider reading from the given directory
func NewCSVProvider(dir string, logger *logrus.Logger) (*CSVProvider, error) {
	if dir == "" {
		return nil, fmt.Errorf("csv directory is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat csv directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("csv path %s is not a directory", dir)
	}
	return &CSVProvider{dir: dir, logger: logger}, nil
}

// Name returns the provider name
func (p *CSVProvider) Name() string { return "csv" }

// GetOHLCV reads the symbol's file and returns candles within [start, end)
func (p *CSVProvider) GetOHLCV(ctx context.Context, symbol string, timeframe models.Timeframe, start, end time.Time) (models.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, fmt.Sprintf("%s_%s.csv", symbol, timeframe))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewProviderError(p.Name(), ErrCodeNotFound, fmt.Sprintf("no data file for %s %s", symbol, timeframe), ErrSymbolNotFound)
		}
		return nil, fmt.Errorf("failed to open candle file: %w", err)
	}
	defer file.Close()

	series, err := parseCandles(file, symbol)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, fmt.Sprintf("failed to parse %s", path), err)
	}

	filtered := series.Slice(start, end)
	p.logger.WithFields(logrus.Fields{
		"symbol":    symbol,
		"timeframe": timeframe,
		"candles":   len(filtered),
	}).Debug("Loaded candles from CSV")
	return filtered, nil
}

func parseCandles(r io.Reader, symbol string) (models.Series, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return models.Series{}, nil
	}

	// Skip header row if present
	if len(records[0]) > 0 && records[0][0] == "time" {
		records = records[1:]
	}

	series := make(models.Series, 0, len(records))
	for i, record := range records {
		if len(record) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+1, len(record))
		}
		ts, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		values := make([]float64, 5)
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+2, err)
			}
			values[j] = v
		}
		series = append(series, models.Candle{
			Symbol: symbol,
			Time:   ts,
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
