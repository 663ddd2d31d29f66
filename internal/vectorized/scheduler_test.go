package vectorized

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quantgrid/internal/backtest"
	"github.com/yourusername/quantgrid/internal/strategy"
)

// recordingRunner counts executions per (strategy, range) unit and can be
// told to fail or panic on specific units
type recordingRunner struct {
	mu      sync.Mutex
	calls   map[string]int
	failOn  map[string]bool
	panicOn map[string]bool
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{
		calls:   make(map[string]int),
		failOn:  make(map[string]bool),
		panicOn: make(map[string]bool),
	}
}

func unitKey(cfg strategy.Config, rng DateRange) string {
	return cfg.Symbol + "/" + rng.Key()
}

func (r *recordingRunner) Run(ctx context.Context, cfg strategy.Config, rng DateRange) (*backtest.RunResult, error) {
	key := unitKey(cfg, rng)

	r.mu.Lock()
	r.calls[key]++
	fail := r.failOn[key]
	shouldPanic := r.panicOn[key]
	r.mu.Unlock()

	if shouldPanic {
		panic("runner exploded")
	}
	if fail {
		return nil, errors.New("simulated run failure")
	}

	// Sharpe derived from the rank param makes filter outcomes predictable
	rank, _ := cfg.Params["rank"].(float64)
	return &backtest.RunResult{
		Metrics: backtest.Metrics{
			TotalReturn: rank / 10,
			SharpeRatio: rank,
			TotalTrades: 1,
		},
	}, nil
}

func (r *recordingRunner) callCount(cfg strategy.Config, rng DateRange) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[unitKey(cfg, rng)]
}

func (r *recordingRunner) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

func testConfigs(n int) []strategy.Config {
	configs := make([]strategy.Config, 0, n)
	for i := 0; i < n; i++ {
		configs = append(configs, strategy.Config{
			Name:      "sma_cross",
			Symbol:    fmt.Sprintf("SYM%02d", i),
			Timeframe: "1h",
			Params:    map[string]any{"rank": float64(i)},
		})
	}
	return configs
}

func testRanges(n int) []DateRange {
	ranges := make([]DateRange, 0, n)
	for i := 0; i < n; i++ {
		start := time.Date(2023, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC)
		ranges = append(ranges, DateRange{
			Start: start,
			End:   start.AddDate(0, 1, 0),
			Name:  fmt.Sprintf("window-%d", i),
		})
	}
	return ranges
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// TestRunExecutesEveryUnit tests that every strategy runs over every range
// exactly once when no filters or checkpoints are involved
func TestRunExecutesEveryUnit(t *testing.T) {
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{BatchSize: 2}, quietLogger())
	require.NoError(t, err)

	configs := testConfigs(5)
	ranges := testRanges(3)

	report, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	assert.Equal(t, 15, report.Completed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	for _, cfg := range configs {
		for _, rng := range ranges {
			assert.Equal(t, 1, runner.callCount(cfg, rng))
		}
	}
	for _, bt := range report.Backtests {
		assert.Len(t, bt.Results, 3)
	}
}

// TestRunParallelMatchesSequential tests that a worker pool produces the
// same completed set as a sequential run
func TestRunParallelMatchesSequential(t *testing.T) {
	configs := testConfigs(7)
	ranges := testRanges(2)

	for _, workers := range []int{0, 4, WorkersAuto} {
		runner := newRecordingRunner()
		orch, err := NewOrchestrator(runner, Options{Workers: workers, BatchSize: 3}, quietLogger())
		require.NoError(t, err)

		report, err := orch.Run(context.Background(), configs, ranges)
		require.NoError(t, err)
		assert.Equal(t, 14, report.Completed, "workers=%d", workers)
		assert.Equal(t, 14, runner.totalCalls(), "workers=%d", workers)
	}
}

// TestRunNoStorageDirWritesNothing tests that without a storage directory
// no files are created
func TestRunNoStorageDirWritesNothing(t *testing.T) {
	dir := t.TempDir()
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{}, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), testConfigs(2), testRanges(2))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestRunStorageWithoutCheckpointsNeverSkips tests that results persist but
// a rerun still executes everything when checkpoints are not consulted
func TestRunStorageWithoutCheckpointsNeverSkips(t *testing.T) {
	dir := t.TempDir()
	configs := testConfigs(3)
	ranges := testRanges(2)

	runner := newRecordingRunner()
	opts := Options{StorageDir: dir, UseCheckpoints: false}
	orch, err := NewOrchestrator(runner, opts, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	// Index and payloads exist on disk
	_, err = os.Stat(filepath.Join(dir, checkpointIndexFile))
	require.NoError(t, err)

	// Second run re-executes every unit
	report, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Completed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 12, runner.totalCalls())
}

// TestRunWithoutConsultingKeepsExistingCheckpoints tests that a run which
// writes checkpoints without consulting them merges into the on-disk index
// instead of replacing it, so earlier runs stay resumable
func TestRunWithoutConsultingKeepsExistingCheckpoints(t *testing.T) {
	dir := t.TempDir()
	ranges := testRanges(2)
	gridA := testConfigs(3)
	gridB := testConfigs(5)[3:]

	runnerA := newRecordingRunner()
	orchA, err := NewOrchestrator(runnerA, Options{StorageDir: dir, UseCheckpoints: true}, quietLogger())
	require.NoError(t, err)
	first, err := orchA.Run(context.Background(), gridA, ranges)
	require.NoError(t, err)
	require.Equal(t, 6, first.Completed)

	// A different grid over the same directory, writing but not consulting
	runnerB := newRecordingRunner()
	orchB, err := NewOrchestrator(runnerB, Options{StorageDir: dir, UseCheckpoints: false}, quietLogger())
	require.NoError(t, err)
	second, err := orchB.Run(context.Background(), gridB, ranges)
	require.NoError(t, err)
	assert.Equal(t, 4, second.Completed)
	assert.Equal(t, 0, second.Skipped)

	// The index holds the union of both grids
	store, err := NewStore(dir, quietLogger())
	require.NoError(t, err)
	checkpoints, err := NewCheckpointStore(store, quietLogger())
	require.NoError(t, err)
	require.NoError(t, checkpoints.LoadAll())
	assert.Equal(t, 10, checkpoints.Count())

	// Resuming the first grid still skips everything it completed
	runnerA2 := newRecordingRunner()
	orchA2, err := NewOrchestrator(runnerA2, Options{StorageDir: dir, UseCheckpoints: true}, quietLogger())
	require.NoError(t, err)
	resumed, err := orchA2.Run(context.Background(), gridA, ranges)
	require.NoError(t, err)
	assert.Equal(t, 0, resumed.Completed)
	assert.Equal(t, 6, resumed.Skipped)
	assert.Equal(t, 0, runnerA2.totalCalls())
}

// TestRunCheckpointsRequireStorageDir tests that UseCheckpoints alone, with
// no storage directory, neither creates nor consults anything
func TestRunCheckpointsRequireStorageDir(t *testing.T) {
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{UseCheckpoints: true}, quietLogger())
	require.NoError(t, err)

	configs := testConfigs(2)
	ranges := testRanges(2)
	report, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Completed)
	assert.Equal(t, 0, report.Skipped)

	// Second run recomputes everything; there is nothing to resume from
	report, err = orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Completed)
	assert.Equal(t, 8, runner.totalCalls())
}

// TestRunBatchSizeInvariance tests that batch sizes pace the run without
// changing its outcome
func TestRunBatchSizeInvariance(t *testing.T) {
	configs := testConfigs(5)
	ranges := testRanges(2)

	var baseline *Report
	for _, sizes := range [][2]int{{1, 1}, {2, 3}, {100, 50}} {
		runner := newRecordingRunner()
		orch, err := NewOrchestrator(runner, Options{
			StorageDir:          t.TempDir(),
			BatchSize:           sizes[0],
			CheckpointBatchSize: sizes[1],
		}, quietLogger())
		require.NoError(t, err)

		report, err := orch.Run(context.Background(), configs, ranges)
		require.NoError(t, err)
		assert.Equal(t, 10, report.Completed, "batch=%d flush=%d", sizes[0], sizes[1])

		if baseline == nil {
			baseline = report
			continue
		}
		for i, bt := range report.Backtests {
			want := baseline.Backtests[i]
			assert.Equal(t, want.Identity, bt.Identity)
			for key, res := range want.Results {
				got, ok := bt.Results[key]
				require.True(t, ok)
				assert.Equal(t, res.Metrics.SharpeRatio, got.Metrics.SharpeRatio)
				assert.Equal(t, res.Metrics.TotalTrades, got.Metrics.TotalTrades)
			}
		}
	}
}

// TestRunEndToEndScenario tests the full pipeline on a fresh storage
// directory: every unit runs once, every unit is checkpointed, and every
// strategy carries a result per range
func TestRunEndToEndScenario(t *testing.T) {
	dir := t.TempDir()
	configs := testConfigs(10)
	ranges := testRanges(2)

	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		StorageDir:          dir,
		UseCheckpoints:      true,
		BatchSize:           4,
		CheckpointBatchSize: 2,
		Workers:             WorkersAuto,
	}, quietLogger())
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	assert.Equal(t, 20, report.Completed)
	assert.Equal(t, 20, runner.totalCalls())
	require.Len(t, report.Backtests, 10)
	for _, bt := range report.Backtests {
		assert.Len(t, bt.Results, 2)
	}

	store, err := NewStore(dir, quietLogger())
	require.NoError(t, err)
	checkpoints, err := NewCheckpointStore(store, quietLogger())
	require.NoError(t, err)
	require.NoError(t, checkpoints.LoadAll())
	assert.Equal(t, 20, checkpoints.Count())
}

// TestRunResumesFromCheckpoints tests that a second run with checkpoints
// enabled skips completed work and loads its results from disk
func TestRunResumesFromCheckpoints(t *testing.T) {
	dir := t.TempDir()
	configs := testConfigs(4)
	ranges := testRanges(3)
	opts := Options{StorageDir: dir, UseCheckpoints: true, CheckpointBatchSize: 2}

	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, opts, quietLogger())
	require.NoError(t, err)
	first, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)
	assert.Equal(t, 12, first.Completed)

	// Fresh orchestrator over the same directory skips everything
	runner2 := newRecordingRunner()
	orch2, err := NewOrchestrator(runner2, opts, quietLogger())
	require.NoError(t, err)
	second, err := orch2.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Completed)
	assert.Equal(t, 12, second.Skipped)
	assert.Equal(t, 0, runner2.totalCalls())

	// Skipped units still carry their loaded results
	for _, bt := range second.Backtests {
		assert.Len(t, bt.Results, 3)
	}
}

// TestRunCheckpointAlwaysHasPayload tests that every entry in the index has
// a loadable result payload behind it
func TestRunCheckpointAlwaysHasPayload(t *testing.T) {
	dir := t.TempDir()
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{StorageDir: dir, CheckpointBatchSize: 3}, quietLogger())
	require.NoError(t, err)

	configs := testConfigs(5)
	ranges := testRanges(2)
	_, err = orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	store, err := NewStore(dir, quietLogger())
	require.NoError(t, err)
	checkpoints, err := NewCheckpointStore(store, quietLogger())
	require.NoError(t, err)
	require.NoError(t, checkpoints.LoadAll())
	require.Equal(t, 10, checkpoints.Count())

	for _, cfg := range configs {
		for _, rng := range ranges {
			result, err := checkpoints.LoadResult(cfg.Identity(), rng.Key())
			require.NoError(t, err)
			assert.NotNil(t, result)
		}
	}
}

// TestRunCorruptCheckpointIndexStartsFresh tests that an unreadable index
// is recovered from by re-running everything
func TestRunCorruptCheckpointIndexStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, checkpointIndexFile), []byte("{not json"), 0o644))

	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{StorageDir: dir, UseCheckpoints: true}, quietLogger())
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), testConfigs(2), testRanges(2))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Completed)
	assert.Equal(t, 0, report.Skipped)
}

// TestRunRecordsFailuresAndContinues tests per-unit failure handling with
// ContinueOnError enabled
func TestRunRecordsFailuresAndContinues(t *testing.T) {
	configs := testConfigs(3)
	ranges := testRanges(2)

	runner := newRecordingRunner()
	runner.failOn[unitKey(configs[1], ranges[0])] = true

	orch, err := NewOrchestrator(runner, Options{ContinueOnError: true}, quietLogger())
	require.NoError(t, err)
	report, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Completed)
	assert.Equal(t, 1, report.Failed)

	failed := report.Backtests[1]
	require.Len(t, failed.Metadata.Failures, 1)
	assert.Equal(t, ranges[0].Key(), failed.Metadata.Failures[0].RangeKey)
	// The strategy still ran its remaining ranges
	assert.Contains(t, failed.Results, ranges[1].Key())
}

// TestRunStopsOnFirstFailure tests that without ContinueOnError the run
// fails fast with a RunError
func TestRunStopsOnFirstFailure(t *testing.T) {
	configs := testConfigs(3)
	ranges := testRanges(2)

	runner := newRecordingRunner()
	runner.failOn[unitKey(configs[0], ranges[0])] = true

	orch, err := NewOrchestrator(runner, Options{ContinueOnError: false}, quietLogger())
	require.NoError(t, err)
	_, err = orch.Run(context.Background(), configs, ranges)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, configs[0].Identity(), runErr.Identity)
	assert.Equal(t, ranges[0].Key(), runErr.RangeKey)
}

// TestRunContainsRunnerPanics tests that a panicking runner is recorded as
// a failed unit instead of crashing the orchestrator
func TestRunContainsRunnerPanics(t *testing.T) {
	configs := testConfigs(2)
	ranges := testRanges(1)

	runner := newRecordingRunner()
	runner.panicOn[unitKey(configs[0], ranges[0])] = true

	orch, err := NewOrchestrator(runner, Options{ContinueOnError: true, Workers: 2}, quietLogger())
	require.NoError(t, err)
	report, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, report.Failed)
}

// TestRunWindowFilterShrinksActiveSet tests progressive filtering: dropped
// strategies stop running later ranges but keep their results
func TestRunWindowFilterShrinksActiveSet(t *testing.T) {
	configs := testConfigs(6)
	ranges := testRanges(3)

	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		WindowFilter: TopN(2, SharpeMetric),
	}, quietLogger())
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	// Range 0 runs all 6, later ranges only the surviving 2
	assert.Equal(t, 6+2+2, report.Completed)
	assert.Equal(t, 4, report.FilteredOut)
	assert.Len(t, report.Active, 2)

	// Highest ranks survive; survivors keep registration order
	assert.Equal(t, configs[4].Identity(), report.Active[0].Identity)
	assert.Equal(t, configs[5].Identity(), report.Active[1].Identity)

	for _, bt := range report.Backtests {
		if bt.Metadata.FilteredOut {
			assert.Equal(t, ranges[0].Key(), bt.Metadata.FilteredOutAt)
			// Results from before the filter survive
			assert.Contains(t, bt.Results, ranges[0].Key())
			assert.NotContains(t, bt.Results, ranges[1].Key())
		}
	}
}

// TestRunFilterAppliedAfterLastRange tests that the window filter also runs
// after the final range
func TestRunFilterAppliedAfterLastRange(t *testing.T) {
	configs := testConfigs(4)
	ranges := testRanges(1)

	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{WindowFilter: TopN(1, SharpeMetric)}, quietLogger())
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	assert.Len(t, report.Active, 1)
	assert.Equal(t, 3, report.FilteredOut)
	assert.Equal(t, 4, report.Completed)
}

// TestRunFilteredOutResultsPersistOnDisk tests that dropped strategies keep
// their persisted results and metadata, and reload from storage
func TestRunFilteredOutResultsPersistOnDisk(t *testing.T) {
	dir := t.TempDir()
	configs := testConfigs(4)
	ranges := testRanges(2)

	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		StorageDir:   dir,
		WindowFilter: TopN(1, SharpeMetric),
	}, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), configs, ranges)
	require.NoError(t, err)

	loaded, err := LoadBacktestsFromDirectory(dir, quietLogger())
	require.NoError(t, err)
	assert.Len(t, loaded, 4)

	filtered := 0
	for _, bt := range loaded {
		if bt.Metadata.FilteredOut {
			filtered++
			assert.Equal(t, ranges[0].Key(), bt.Metadata.FilteredOutAt)
			assert.Contains(t, bt.Results, ranges[0].Key())
		}
	}
	assert.Equal(t, 3, filtered)
}

// TestRunFilterErrorIsFatal tests that a failing filter aborts the run
func TestRunFilterErrorIsFatal(t *testing.T) {
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		WindowFilter: func(rng DateRange, active []*Backtest) ([]*Backtest, error) {
			return nil, errors.New("broken filter")
		},
	}, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), testConfigs(2), testRanges(2))
	var filterErr *FilterError
	require.ErrorAs(t, err, &filterErr)
}

// TestRunFilterPanicIsFatal tests that a panicking filter surfaces as a
// FilterError rather than crashing
func TestRunFilterPanicIsFatal(t *testing.T) {
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		WindowFilter: func(rng DateRange, active []*Backtest) ([]*Backtest, error) {
			panic("filter exploded")
		},
	}, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), testConfigs(2), testRanges(1))
	var filterErr *FilterError
	require.ErrorAs(t, err, &filterErr)
}

// TestRunFilterCannotGrowActiveSet tests that entries a filter invents are
// ignored
func TestRunFilterCannotGrowActiveSet(t *testing.T) {
	intruder := NewBacktest(strategy.Config{Name: "sma_cross", Symbol: "EVIL", Timeframe: "1h"})
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		WindowFilter: func(rng DateRange, active []*Backtest) ([]*Backtest, error) {
			return append([]*Backtest{intruder}, active...), nil
		},
	}, quietLogger())
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), testConfigs(3), testRanges(1))
	require.NoError(t, err)
	assert.Len(t, report.Active, 3)
	for _, bt := range report.Active {
		assert.NotEqual(t, intruder.Identity, bt.Identity)
	}
}

// TestRunFinalFilterIsInformational tests that the final filter selects
// without discarding results
func TestRunFinalFilterIsInformational(t *testing.T) {
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		FinalFilter: func(all []*Backtest) ([]*Backtest, error) {
			return all[:1], nil
		},
	}, quietLogger())
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), testConfigs(3), testRanges(2))
	require.NoError(t, err)

	assert.Len(t, report.Selected, 1)
	assert.Len(t, report.Active, 3)
	for _, bt := range report.Backtests {
		assert.Len(t, bt.Results, 2)
	}
}

// TestRunFinalFilterErrorIsFatal tests that a failing final filter aborts
// the run with a FilterError
func TestRunFinalFilterErrorIsFatal(t *testing.T) {
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		FinalFilter: func(all []*Backtest) ([]*Backtest, error) {
			return nil, errors.New("broken selection")
		},
	}, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), testConfigs(2), testRanges(1))
	var filterErr *FilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Equal(t, FinalFilterStage, filterErr.RangeKey)
}

// TestRunFinalFilterPanicIsFatal tests that a panicking final filter
// surfaces as a FilterError rather than crashing
func TestRunFinalFilterPanicIsFatal(t *testing.T) {
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		FinalFilter: func(all []*Backtest) ([]*Backtest, error) {
			panic("selection exploded")
		},
	}, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), testConfigs(2), testRanges(1))
	var filterErr *FilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Equal(t, FinalFilterStage, filterErr.RangeKey)
	assert.Contains(t, filterErr.Err.Error(), "panicked")
}

// TestRunFinalFilterCannotGrowSelection tests that entries the final filter
// invents or duplicates are ignored
func TestRunFinalFilterCannotGrowSelection(t *testing.T) {
	intruder := NewBacktest(strategy.Config{Name: "sma_cross", Symbol: "EVIL", Timeframe: "1h"})
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{
		FinalFilter: func(all []*Backtest) ([]*Backtest, error) {
			padded := append([]*Backtest{intruder}, all...)
			return append(padded, all[0]), nil
		},
	}, quietLogger())
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), testConfigs(3), testRanges(1))
	require.NoError(t, err)
	assert.Len(t, report.Selected, 3)
	for _, bt := range report.Selected {
		assert.NotEqual(t, intruder.Identity, bt.Identity)
	}
}

// TestRunDropsDuplicateConfigs tests duplicate identity deduplication
func TestRunDropsDuplicateConfigs(t *testing.T) {
	configs := testConfigs(2)
	configs = append(configs, configs[0])

	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{}, quietLogger())
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), configs, testRanges(1))
	require.NoError(t, err)
	assert.Len(t, report.Backtests, 2)
	assert.Equal(t, 2, report.Completed)
}

// TestRunValidatesInputs tests empty and malformed inputs
func TestRunValidatesInputs(t *testing.T) {
	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{}, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), nil, testRanges(1))
	assert.ErrorIs(t, err, ErrNoStrategies)

	_, err = orch.Run(context.Background(), testConfigs(1), nil)
	assert.ErrorIs(t, err, ErrNoRanges)

	bad := testRanges(1)
	bad[0].End = bad[0].Start
	_, err = orch.Run(context.Background(), testConfigs(1), bad)
	assert.Error(t, err)

	dup := testRanges(2)
	dup[1].Name = dup[0].Name
	_, err = orch.Run(context.Background(), testConfigs(1), dup)
	assert.Error(t, err)
}

// TestRunHonorsCancellation tests that a cancelled context stops the run
func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := newRecordingRunner()
	orch, err := NewOrchestrator(runner, Options{}, quietLogger())
	require.NoError(t, err)

	_, err = orch.Run(ctx, testConfigs(2), testRanges(2))
	assert.ErrorIs(t, err, context.Canceled)
}
