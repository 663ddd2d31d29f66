package vectorized

import (
	"errors"
	"fmt"

	"github.com/yourusername/quantgrid/internal/strategy"
)

// Sentinel errors
var (
	// ErrCorruptCheckpoint signals an unreadable checkpoint index. Callers
	// treat it as recoverable: warn and proceed with an empty set.
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint index")

	// ErrMissingResult signals that a checkpointed result's payload is not
	// on disk.
	ErrMissingResult = errors.New("result not found in storage")

	// ErrNoStrategies signals an empty strategy grid
	ErrNoStrategies = errors.New("no strategies to run")

	// ErrNoRanges signals an empty date range list
	ErrNoRanges = errors.New("no date ranges to run")
)

// RunError wraps a failure of one (strategy, range) work unit. It is
// recoverable at the run level: the orchestrator records it and continues
// with the remaining units unless configured to stop.
type RunError struct {
	Identity strategy.Identity
	RangeKey string
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed for strategy %s range %s: %v", e.Identity.Short(), e.RangeKey, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// FilterError wraps a failure inside a window or final filter. Filters gate
// which strategies advance, so a broken filter is fatal for the whole run.
type FilterError struct {
	// RangeKey names the range whose window filter failed, or
	// FinalFilterStage for the selection at the end of the run
	RangeKey string
	Err      error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter failed at %s: %v", e.RangeKey, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}
