package vectorized

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/quantgrid/internal/backtest"
	"github.com/yourusername/quantgrid/internal/metrics"
	"github.com/yourusername/quantgrid/internal/strategy"
)

// Defaults and worker modes
const (
	DefaultBatchSize           = 100
	DefaultCheckpointBatchSize = 50

	// WorkersAuto sizes the pool to the number of CPUs
	WorkersAuto = -1
)

// Options configures an orchestrator run.
//
// Storage follows a three-way contract: with no StorageDir nothing is ever
// written or read; with a StorageDir and UseCheckpoints off, results and
// checkpoints are written but never consulted; with both set, previously
// checkpointed work is skipped and its results are loaded from disk.
type Options struct {
	// BatchSize caps how many strategies run concurrently as one batch
	BatchSize int

	// CheckpointBatchSize caps how many finished results buffer in memory
	// before being flushed to storage
	CheckpointBatchSize int

	// Workers sets pool size: 0 runs sequentially, WorkersAuto uses NumCPU
	Workers int

	// UseCheckpoints enables skipping work recorded in the checkpoint index
	UseCheckpoints bool

	// StorageDir is the root directory for results and checkpoints
	StorageDir string

	// WindowFilter runs after every range and shrinks the active set
	WindowFilter WindowFilterFunc

	// FinalFilter selects strategies for the report; it drops no results.
	// An error or panic inside it aborts the run with a *FilterError.
	FinalFilter FinalFilterFunc

	// ContinueOnError keeps the run going past individual run failures
	ContinueOnError bool

	// ShowProgress enables batch-level progress logging
	ShowProgress bool

	// ItemTimeout bounds each individual run; zero means no limit
	ItemTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.CheckpointBatchSize <= 0 {
		o.CheckpointBatchSize = DefaultCheckpointBatchSize
	}
	if o.Workers == WorkersAuto {
		o.Workers = runtime.NumCPU()
	}
	if o.Workers < 0 {
		o.Workers = 0
	}
}

// Report is the outcome of a full grid run
type Report struct {
	// Backtests holds every strategy that entered the run, including ones
	// filtered out mid-run; their accumulated results are never discarded
	Backtests []*Backtest

	// Active holds strategies that survived every window filter
	Active []*Backtest

	// Selected is the final filter's choice, a subset of Active
	Selected []*Backtest

	Completed   int
	Skipped     int
	Failed      int
	FilteredOut int
	Duration    time.Duration
}

// Orchestrator runs a grid of strategy configs across sequential date
// ranges with batching, bounded parallelism, checkpointing and progressive
// filtering.
type Orchestrator struct {
	runner Runner
	opts   Options
	logger *logrus.Logger
}

// NewOrchestrator creates an orchestrator around a runner
func NewOrchestrator(runner Runner, opts Options, logger *logrus.Logger) (*Orchestrator, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	opts.withDefaults()
	return &Orchestrator{
		runner: runner,
		opts:   opts,
		logger: logger,
	}, nil
}

// workItem is one (strategy, range) unit scheduled within a batch
type workItem struct {
	bt     *Backtest
	result *backtest.RunResult
	err    error
}

// flushEntry is one finished result waiting for its storage write
type flushEntry struct {
	cfg      strategy.Config
	rangeKey string
	result   *backtest.RunResult
}

// Run executes every config across every range. Ranges are processed
// strictly in order; strategies within a range run in batches with no
// ordering guarantee inside a batch.
func (o *Orchestrator) Run(ctx context.Context, configs []strategy.Config, ranges []DateRange) (*Report, error) {
	if len(configs) == 0 {
		return nil, ErrNoStrategies
	}
	if err := ValidateRanges(ranges); err != nil {
		return nil, err
	}

	backtests, err := o.buildBacktests(configs)
	if err != nil {
		return nil, err
	}

	store, checkpoints, err := o.openStorage()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	report := &Report{Backtests: backtests}
	progress := newProgressReporter(o.logger, o.opts.ShowProgress, len(backtests)*len(ranges))

	o.logger.WithFields(logrus.Fields{
		"strategies": len(backtests),
		"ranges":     len(ranges),
		"workers":    o.opts.Workers,
		"batch_size": o.opts.BatchSize,
	}).Info("Starting grid run")

	active := backtests
	var pending []flushEntry

	for rangeIdx, rng := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rangeKey := rng.Key()

		for start := 0; start < len(active); start += o.opts.BatchSize {
			end := start + o.opts.BatchSize
			if end > len(active) {
				end = len(active)
			}
			batch := active[start:end]

			items, skipped := o.partitionBatch(batch, rangeKey, checkpoints)
			report.Skipped += skipped

			if err := o.runBatch(ctx, items, rng); err != nil {
				return nil, err
			}

			for _, item := range items {
				if item.err != nil {
					runErr := &RunError{Identity: item.bt.Identity, RangeKey: rangeKey, Err: item.err}
					item.bt.RecordFailure(rangeKey, item.err)
					report.Failed++
					metrics.RecordRunFailed()
					o.logger.WithError(item.err).WithFields(logrus.Fields{
						"strategy": item.bt.Identity.Short(),
						"range":    rangeKey,
					}).Warn("Strategy run failed")

					if !o.opts.ContinueOnError {
						if ferr := o.flush(store, checkpoints, pending); ferr != nil {
							return nil, ferr
						}
						return nil, runErr
					}
					continue
				}

				item.bt.Results[rangeKey] = item.result
				report.Completed++

				if store != nil {
					pending = append(pending, flushEntry{
						cfg:      item.bt.Config,
						rangeKey: rangeKey,
						result:   item.result,
					})
					if len(pending) >= o.opts.CheckpointBatchSize {
						if err := o.flush(store, checkpoints, pending); err != nil {
							return nil, err
						}
						pending = pending[:0]
					}
				}
			}

			progress.advance(len(batch), rangeKey)
		}

		if err := o.flush(store, checkpoints, pending); err != nil {
			return nil, err
		}
		pending = pending[:0]

		survivors, err := o.applyWindowFilter(rng, active)
		if err != nil {
			return nil, err
		}
		if len(survivors) < len(active) {
			dropped := markFilteredOut(active, survivors, rangeKey)
			report.FilteredOut += len(dropped)
			metrics.RecordStrategiesFiltered(len(dropped))
			progress.shrink(len(dropped) * (len(ranges) - rangeIdx - 1))

			if store != nil {
				for _, bt := range dropped {
					if err := store.WriteMetadata(bt.Identity, bt.Metadata); err != nil {
						return nil, err
					}
				}
			}

			o.logger.WithFields(logrus.Fields{
				"range":    rangeKey,
				"dropped":  len(dropped),
				"survived": len(survivors),
			}).Info("Window filter applied")
		}
		active = survivors
		metrics.UpdateActiveStrategies(float64(len(active)))
	}

	report.Active = active
	report.Selected, err = o.applyFinalFilter(active)
	if err != nil {
		return nil, err
	}
	report.Duration = time.Since(started)
	metrics.RecordGridDuration(report.Duration.Seconds())

	o.logger.WithFields(logrus.Fields{
		"completed":    report.Completed,
		"skipped":      report.Skipped,
		"failed":       report.Failed,
		"filtered_out": report.FilteredOut,
		"selected":     len(report.Selected),
		"duration":     report.Duration.Round(time.Millisecond).String(),
	}).Info("Grid run finished")

	return report, nil
}

// buildBacktests creates aggregates in registration order, dropping
// duplicate identities after the first
func (o *Orchestrator) buildBacktests(configs []strategy.Config) ([]*Backtest, error) {
	backtests := make([]*Backtest, 0, len(configs))
	seen := make(map[strategy.Identity]bool, len(configs))

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", cfg.Label(), err)
		}
		id := cfg.Identity()
		if seen[id] {
			o.logger.WithField("strategy", cfg.Label()).Warn("Dropping duplicate strategy config")
			continue
		}
		seen[id] = true
		backtests = append(backtests, NewBacktest(cfg))
	}
	if len(backtests) == 0 {
		return nil, ErrNoStrategies
	}
	return backtests, nil
}

// openStorage sets up the result store and checkpoint index per Options
func (o *Orchestrator) openStorage() (*Store, *CheckpointStore, error) {
	if o.opts.StorageDir == "" {
		return nil, nil, nil
	}

	store, err := NewStore(o.opts.StorageDir, o.logger)
	if err != nil {
		return nil, nil, err
	}
	checkpoints, err := NewCheckpointStore(store, o.logger)
	if err != nil {
		return nil, nil, err
	}

	// The index is always loaded so flushes merge with prior runs instead of
	// replacing them; whether it is consulted is a separate decision gated on
	// UseCheckpoints in partitionBatch.
	if err := checkpoints.LoadAll(); err != nil {
		// A corrupt index is recoverable: start from an empty set
		o.logger.WithError(err).Warn("Checkpoint index unreadable, starting fresh")
	}
	return store, checkpoints, nil
}

// partitionBatch splits a batch into items that must run and checkpointed
// units whose results load from storage. A checkpoint whose payload cannot
// be loaded falls back to re-running the unit.
func (o *Orchestrator) partitionBatch(batch []*Backtest, rangeKey string, checkpoints *CheckpointStore) ([]*workItem, int) {
	items := make([]*workItem, 0, len(batch))
	skipped := 0

	for _, bt := range batch {
		if o.opts.UseCheckpoints && checkpoints != nil && checkpoints.IsCheckpointed(bt.Identity, rangeKey) {
			result, err := checkpoints.LoadResult(bt.Identity, rangeKey)
			if err == nil {
				bt.Results[rangeKey] = result
				skipped++
				metrics.RecordRunSkipped()
				continue
			}
			o.logger.WithError(err).WithFields(logrus.Fields{
				"strategy": bt.Identity.Short(),
				"range":    rangeKey,
			}).Warn("Checkpointed result unreadable, re-running")
		}
		items = append(items, &workItem{bt: bt})
	}
	return items, skipped
}

// runBatch executes items with bounded parallelism. Workers=0 runs the
// batch sequentially on the calling goroutine.
func (o *Orchestrator) runBatch(ctx context.Context, items []*workItem, rng DateRange) error {
	if len(items) == 0 {
		return nil
	}

	if o.opts.Workers == 0 {
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			item.result, item.err = o.runOne(ctx, item.bt.Config, rng)
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, o.opts.Workers)

	for _, item := range items {
		item := item
		group.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
			defer func() { <-sem }()

			item.result, item.err = o.runOne(groupCtx, item.bt.Config, rng)
			return nil
		})
	}
	return group.Wait()
}

// runOne executes a single unit with timeout and panic containment
func (o *Orchestrator) runOne(ctx context.Context, cfg strategy.Config, rng DateRange) (result *backtest.RunResult, err error) {
	if o.opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.ItemTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()

	started := time.Now()
	result, err = o.runner.Run(ctx, cfg, rng)
	if err == nil {
		metrics.RecordRunCompleted(time.Since(started).Seconds())
	}
	return result, err
}

// applyWindowFilter runs the configured filter with panic containment and
// restores registration order among survivors
func (o *Orchestrator) applyWindowFilter(rng DateRange, active []*Backtest) (survivors []*Backtest, err error) {
	if o.opts.WindowFilter == nil {
		return active, nil
	}

	defer func() {
		if r := recover(); r != nil {
			survivors = nil
			err = &FilterError{RangeKey: rng.Key(), Err: fmt.Errorf("filter panicked: %v", r)}
		}
	}()

	picked, ferr := o.opts.WindowFilter(rng, active)
	if ferr != nil {
		return nil, &FilterError{RangeKey: rng.Key(), Err: ferr}
	}

	// The filter may only shrink the active set, never grow or replace it
	allowed := make(map[strategy.Identity]*Backtest, len(active))
	for _, bt := range active {
		allowed[bt.Identity] = bt
	}
	keep := make(map[strategy.Identity]bool, len(picked))
	for _, bt := range picked {
		if _, ok := allowed[bt.Identity]; ok {
			keep[bt.Identity] = true
		}
	}

	survivors = make([]*Backtest, 0, len(keep))
	for _, bt := range active {
		if keep[bt.Identity] {
			survivors = append(survivors, bt)
		}
	}
	return survivors, nil
}

// FinalFilterStage labels FilterError failures of the final selection,
// which runs once after every range rather than at a particular one
const FinalFilterStage = "final"

// applyFinalFilter runs the configured final filter with the same panic
// containment as window filters and restricts the selection to the active
// set. The selection keeps the filter's own order, so ranking filters can
// report best-first.
func (o *Orchestrator) applyFinalFilter(active []*Backtest) (selected []*Backtest, err error) {
	if o.opts.FinalFilter == nil {
		return active, nil
	}

	defer func() {
		if r := recover(); r != nil {
			selected = nil
			err = &FilterError{RangeKey: FinalFilterStage, Err: fmt.Errorf("filter panicked: %v", r)}
		}
	}()

	picked, ferr := o.opts.FinalFilter(active)
	if ferr != nil {
		return nil, &FilterError{RangeKey: FinalFilterStage, Err: ferr}
	}

	allowed := make(map[strategy.Identity]bool, len(active))
	for _, bt := range active {
		allowed[bt.Identity] = true
	}

	selected = make([]*Backtest, 0, len(picked))
	seen := make(map[strategy.Identity]bool, len(picked))
	for _, bt := range picked {
		if allowed[bt.Identity] && !seen[bt.Identity] {
			seen[bt.Identity] = true
			selected = append(selected, bt)
		}
	}
	return selected, nil
}

// markFilteredOut flags strategies dropped by a filter and returns them
func markFilteredOut(active, survivors []*Backtest, rangeKey string) []*Backtest {
	kept := make(map[strategy.Identity]bool, len(survivors))
	for _, bt := range survivors {
		kept[bt.Identity] = true
	}

	dropped := make([]*Backtest, 0, len(active)-len(survivors))
	for _, bt := range active {
		if kept[bt.Identity] {
			continue
		}
		bt.Metadata.FilteredOut = true
		bt.Metadata.FilteredOutAt = rangeKey
		dropped = append(dropped, bt)
	}
	return dropped
}

// flush writes buffered results to storage, then records their checkpoints.
// The write-then-record order guarantees a checkpoint never points at a
// missing payload. Storage failures are fatal.
func (o *Orchestrator) flush(store *Store, checkpoints *CheckpointStore, pending []flushEntry) error {
	if store == nil || len(pending) == 0 {
		return nil
	}

	started := time.Now()
	ids := make([]strategy.Identity, 0, len(pending))
	keys := make([]string, 0, len(pending))

	for _, entry := range pending {
		if err := store.WriteResult(entry.cfg, entry.rangeKey, entry.result); err != nil {
			return fmt.Errorf("storage write failed: %w", err)
		}
		ids = append(ids, entry.cfg.Identity())
		keys = append(keys, entry.rangeKey)
	}

	if err := checkpoints.RecordBatch(ids, keys); err != nil {
		return fmt.Errorf("checkpoint record failed: %w", err)
	}

	metrics.RecordFlush(time.Since(started).Seconds())
	o.logger.WithField("results", len(pending)).Debug("Flushed results to storage")
	return nil
}
