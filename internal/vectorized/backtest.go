package vectorized

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/quantgrid/internal/backtest"
	"github.com/yourusername/quantgrid/internal/strategy"
)

// DateRange is one evaluation window. Ranges are processed strictly in the
// order given; strategies within a range run in any order.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Name  string    `json:"name,omitempty"`
}

// Key returns the stable identifier used for checkpoints and storage paths.
// A named range uses its name; otherwise the key is derived from the dates.
func (r DateRange) Key() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("%s-%s", r.Start.Format("20060102"), r.End.Format("20060102"))
}

// Validate checks the range bounds
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("range %s: start and end are required", r.Key())
	}
	if !r.Start.Before(r.End) {
		return fmt.Errorf("range %s: start must be before end", r.Key())
	}
	return nil
}

// ValidateRanges checks every range and rejects duplicate keys
func ValidateRanges(ranges []DateRange) error {
	if len(ranges) == 0 {
		return ErrNoRanges
	}
	seen := make(map[string]bool, len(ranges))
	for _, rng := range ranges {
		if err := rng.Validate(); err != nil {
			return err
		}
		key := rng.Key()
		if seen[key] {
			return fmt.Errorf("duplicate range key %s", key)
		}
		seen[key] = true
	}
	return nil
}

// Failure records one failed work unit on a strategy
type Failure struct {
	RangeKey string    `json:"range_key"`
	Error    string    `json:"error"`
	At       time.Time `json:"at"`
}

// Metadata carries a strategy's orchestration state. It persists alongside
// results so that filtered-out strategies remain inspectable after the run.
type Metadata struct {
	FilteredOut   bool      `json:"filtered_out"`
	FilteredOutAt string    `json:"filtered_out_at,omitempty"`
	Failures      []Failure `json:"failures,omitempty"`
}

// Backtest aggregates everything known about one strategy across all date
// ranges: its config, per-range results keyed by range key, and metadata.
type Backtest struct {
	Identity strategy.Identity              `json:"identity"`
	Config   strategy.Config                `json:"config"`
	Results  map[string]*backtest.RunResult `json:"results"`
	Metadata Metadata                       `json:"metadata"`
}

// NewBacktest creates an empty aggregate for a strategy config
func NewBacktest(cfg strategy.Config) *Backtest {
	return &Backtest{
		Identity: cfg.Identity(),
		Config:   cfg,
		Results:  make(map[string]*backtest.RunResult),
	}
}

// Result returns the run result for a range, if present
func (b *Backtest) Result(rng DateRange) (*backtest.RunResult, bool) {
	res, ok := b.Results[rng.Key()]
	return res, ok
}

// RecordFailure appends a failure entry for a range
func (b *Backtest) RecordFailure(rangeKey string, err error) {
	b.Metadata.Failures = append(b.Metadata.Failures, Failure{
		RangeKey: rangeKey,
		Error:    err.Error(),
		At:       time.Now().UTC(),
	})
}

// Runner executes one strategy over one date range. The backtest engine
// satisfies this through a small adapter in the command layer.
type Runner interface {
	Run(ctx context.Context, cfg strategy.Config, rng DateRange) (*backtest.RunResult, error)
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(ctx context.Context, cfg strategy.Config, rng DateRange) (*backtest.RunResult, error)

// Run implements Runner
func (f RunnerFunc) Run(ctx context.Context, cfg strategy.Config, rng DateRange) (*backtest.RunResult, error) {
	return f(ctx, cfg, rng)
}
