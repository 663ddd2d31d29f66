package vectorized

import (
	"sort"
)

// WindowFilterFunc decides which strategies advance past a date range. It
// receives the range just completed and the active set with all results up
// to and including that range, and returns the survivors. The returned set
// must be a subset of the input; the orchestrator drops anything else.
type WindowFilterFunc func(rng DateRange, active []*Backtest) ([]*Backtest, error)

// FinalFilterFunc selects strategies from the completed set for reporting.
// It never removes results; it only marks the selection in the report. The
// returned set must be a subset of the input; the orchestrator drops
// anything else. An error aborts the run.
type FinalFilterFunc func(all []*Backtest) ([]*Backtest, error)

// MetricFunc extracts a score from one strategy's result for one range.
// Strategies with no result for the range score zero.
type MetricFunc func(bt *Backtest, rng DateRange) float64

// SharpeMetric scores by the range's Sharpe ratio
func SharpeMetric(bt *Backtest, rng DateRange) float64 {
	if res, ok := bt.Result(rng); ok {
		return res.Metrics.SharpeRatio
	}
	return 0
}

// TotalReturnMetric scores by the range's total return
func TotalReturnMetric(bt *Backtest, rng DateRange) float64 {
	if res, ok := bt.Result(rng); ok {
		return res.Metrics.TotalReturn
	}
	return 0
}

// TopN keeps the n best strategies by the given metric. Ties keep the
// earlier-registered strategy: the sort is stable over the input order.
func TopN(n int, metric MetricFunc) WindowFilterFunc {
	return func(rng DateRange, active []*Backtest) ([]*Backtest, error) {
		if n <= 0 || len(active) <= n {
			return active, nil
		}
		ranked := make([]*Backtest, len(active))
		copy(ranked, active)
		sort.SliceStable(ranked, func(i, j int) bool {
			return metric(ranked[i], rng) > metric(ranked[j], rng)
		})
		return ranked[:n], nil
	}
}

// MinMetric drops strategies scoring below a floor for the range
func MinMetric(floor float64, metric MetricFunc) WindowFilterFunc {
	return func(rng DateRange, active []*Backtest) ([]*Backtest, error) {
		survivors := make([]*Backtest, 0, len(active))
		for _, bt := range active {
			if metric(bt, rng) >= floor {
				survivors = append(survivors, bt)
			}
		}
		return survivors, nil
	}
}

// ChainFilters applies window filters in order, feeding each one the
// survivors of the previous
func ChainFilters(filters ...WindowFilterFunc) WindowFilterFunc {
	return func(rng DateRange, active []*Backtest) ([]*Backtest, error) {
		survivors := active
		for _, filter := range filters {
			var err error
			survivors, err = filter(rng, survivors)
			if err != nil {
				return nil, err
			}
		}
		return survivors, nil
	}
}

// FinalTopN selects the n best strategies by mean score across every range
// they completed
func FinalTopN(n int, metric MetricFunc, ranges []DateRange) FinalFilterFunc {
	return func(all []*Backtest) ([]*Backtest, error) {
		if n <= 0 || len(all) <= n {
			return all, nil
		}
		ranked := make([]*Backtest, len(all))
		copy(ranked, all)
		sort.SliceStable(ranked, func(i, j int) bool {
			return meanScore(ranked[i], ranges, metric) > meanScore(ranked[j], ranges, metric)
		})
		return ranked[:n], nil
	}
}

func meanScore(bt *Backtest, ranges []DateRange, metric MetricFunc) float64 {
	sum := 0.0
	count := 0
	for _, rng := range ranges {
		if _, ok := bt.Result(rng); !ok {
			continue
		}
		sum += metric(bt, rng)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
