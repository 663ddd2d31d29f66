// Package metrics provides the centralized Prometheus metrics registry for
// the grid runner.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RunsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantgrid",
		Name:      "runs_completed_total",
		Help:      "Total number of strategy runs completed",
	})
	RunsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantgrid",
		Name:      "runs_skipped_total",
		Help:      "Total number of strategy runs skipped via checkpoint",
	})
	RunsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantgrid",
		Name:      "runs_failed_total",
		Help:      "Total number of strategy runs that failed",
	})
	StrategiesFilteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantgrid",
		Name:      "strategies_filtered_total",
		Help:      "Total number of strategies dropped by window filters",
	})
	CheckpointWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantgrid",
		Name:      "checkpoint_writes_total",
		Help:      "Total number of checkpoint index writes",
	})
)

// Gauge metrics
var (
	ActiveStrategies = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quantgrid",
		Name:      "active_strategies",
		Help:      "Number of strategies still active in the current run",
	})
)

// Histogram metrics
var (
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quantgrid",
		Name:      "run_duration_seconds",
		Help:      "Duration of individual strategy runs in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	FlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quantgrid",
		Name:      "flush_duration_seconds",
		Help:      "Duration of result flushes to storage in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	GridDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quantgrid",
		Name:      "grid_duration_seconds",
		Help:      "Duration of full grid runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RunsCompletedTotal)
		registry.MustRegister(RunsSkippedTotal)
		registry.MustRegister(RunsFailedTotal)
		registry.MustRegister(StrategiesFilteredTotal)
		registry.MustRegister(CheckpointWritesTotal)

		registry.MustRegister(ActiveStrategies)

		registry.MustRegister(RunDuration)
		registry.MustRegister(FlushDuration)
		registry.MustRegister(GridDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordRunCompleted records a finished strategy run.
func RecordRunCompleted(durationSeconds float64) {
	RunsCompletedTotal.Inc()
	RunDuration.Observe(durationSeconds)
}

// RecordRunSkipped records a checkpoint hit.
func RecordRunSkipped() {
	RunsSkippedTotal.Inc()
}

// RecordRunFailed records a failed strategy run.
func RecordRunFailed() {
	RunsFailedTotal.Inc()
}

// RecordStrategiesFiltered records strategies dropped by a window filter.
func RecordStrategiesFiltered(count int) {
	StrategiesFilteredTotal.Add(float64(count))
}

// RecordFlush records a flush of buffered results to storage.
func RecordFlush(durationSeconds float64) {
	CheckpointWritesTotal.Inc()
	FlushDuration.Observe(durationSeconds)
}

// UpdateActiveStrategies updates the active strategies gauge.
func UpdateActiveStrategies(count float64) {
	ActiveStrategies.Set(count)
}

// RecordGridDuration records the duration of a full grid run.
func RecordGridDuration(durationSeconds float64) {
	GridDuration.Observe(durationSeconds)
}
