package vectorized

import (
	"time"

	"github.com/sirupsen/logrus"
)

// progressReporter logs batch-level progress for long grid runs
type progressReporter struct {
	logger  *logrus.Logger
	enabled bool
	started time.Time
	total   int
	done    int
}

func newProgressReporter(logger *logrus.Logger, enabled bool, total int) *progressReporter {
	return &progressReporter{
		logger:  logger,
		enabled: enabled,
		started: time.Now(),
		total:   total,
	}
}

// advance records n finished work units and logs the running tally
func (p *progressReporter) advance(n int, rangeKey string) {
	p.done += n
	if !p.enabled || p.total == 0 {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"range":   rangeKey,
		"done":    p.done,
		"total":   p.total,
		"percent": float64(p.done) / float64(p.total) * 100,
		"elapsed": time.Since(p.started).Round(time.Second).String(),
	}).Info("Grid progress")
}

// shrink removes units that will never run because their strategies were
// filtered out before reaching the remaining ranges
func (p *progressReporter) shrink(n int) {
	p.total -= n
	if p.total < p.done {
		p.total = p.done
	}
}
