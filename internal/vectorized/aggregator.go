package vectorized

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yourusername/quantgrid/internal/strategy"
)

// Summary aggregates one strategy's results across every range it completed
type Summary struct {
	Identity         strategy.Identity `json:"identity"`
	Label            string            `json:"label"`
	Ranges           int               `json:"ranges"`
	MeanReturn       float64           `json:"mean_return"`
	MeanSharpe       float64           `json:"mean_sharpe"`
	WorstDrawdown    float64           `json:"worst_drawdown"`
	TotalTrades      int               `json:"total_trades"`
	ConsistencyScore float64           `json:"consistency_score"`
	CompositeScore   float64           `json:"composite_score"`
	Recommendation   string            `json:"recommendation"`
	FilteredOut      bool              `json:"filtered_out"`
	FilteredOutAt    string            `json:"filtered_out_at,omitempty"`
	Failures         int               `json:"failures"`
}

// Summarize condenses a backtest aggregate into a cross-range summary
func Summarize(bt *Backtest) Summary {
	summary := Summary{
		Identity:      bt.Identity,
		Label:         bt.Config.Label(),
		Ranges:        len(bt.Results),
		FilteredOut:   bt.Metadata.FilteredOut,
		FilteredOutAt: bt.Metadata.FilteredOutAt,
		Failures:      len(bt.Metadata.Failures),
	}
	if len(bt.Results) == 0 {
		summary.Recommendation = "REJECT"
		return summary
	}

	profitable := 0
	for _, res := range bt.Results {
		summary.MeanReturn += res.Metrics.TotalReturn
		summary.MeanSharpe += res.Metrics.SharpeRatio
		summary.TotalTrades += res.Metrics.TotalTrades
		if res.Metrics.MaxDrawdown > summary.WorstDrawdown {
			summary.WorstDrawdown = res.Metrics.MaxDrawdown
		}
		if res.Metrics.TotalReturn > 0 {
			profitable++
		}
	}
	n := float64(len(bt.Results))
	summary.MeanReturn /= n
	summary.MeanSharpe /= n
	summary.ConsistencyScore = float64(profitable) / n
	summary.CompositeScore = compositeScore(summary)
	summary.Recommendation = recommendation(summary)
	return summary
}

// SummarizeAll summarizes every backtest and sorts by composite score,
// best first. Ties keep the input order.
func SummarizeAll(backtests []*Backtest) []Summary {
	summaries := make([]Summary, 0, len(backtests))
	for _, bt := range backtests {
		summaries = append(summaries, Summarize(bt))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CompositeScore > summaries[j].CompositeScore
	})
	return summaries
}

// compositeScore blends return, risk and consistency into one score in [0, 1]
func compositeScore(s Summary) float64 {
	sharpeScore := normalize(s.MeanSharpe, -2, 3)
	returnScore := normalize(s.MeanReturn, -0.5, 1.0)
	drawdownPenalty := 1.0 - normalize(s.WorstDrawdown, 0, 0.5)
	consistencyScore := normalize(s.ConsistencyScore, 0, 1)

	weighted := 0.0
	weighted += sharpeScore * 0.35
	weighted += returnScore * 0.25
	weighted += drawdownPenalty * 0.20
	weighted += consistencyScore * 0.20
	return weighted
}

// recommendation labels whether a strategy is worth deploying
func recommendation(s Summary) string {
	if s.FilteredOut {
		return "REJECT"
	}
	if s.CompositeScore > 0.7 && s.MeanReturn > 0 && s.ConsistencyScore > 0.6 {
		return "ACCEPT"
	}
	if s.CompositeScore < 0.4 || s.MeanReturn < 0 || s.ConsistencyScore < 0.4 {
		return "REJECT"
	}
	return "NEEDS_REVIEW"
}

// ToJSON exports a summary as JSON
func (s Summary) ToJSON() string {
	data, _ := json.Marshal(s)
	return string(data)
}

// RenderTable formats summaries as a fixed-width text table for CLI output
func RenderTable(summaries []Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %7s %8s %8s %8s %7s %6s %s\n",
		"STRATEGY", "RANGES", "RETURN", "SHARPE", "MAXDD", "TRADES", "SCORE", "VERDICT")
	for _, s := range summaries {
		verdict := s.Recommendation
		if s.FilteredOut {
			verdict = fmt.Sprintf("FILTERED@%s", s.FilteredOutAt)
		}
		fmt.Fprintf(&b, "%-36s %7d %7.2f%% %8.2f %7.2f%% %7d %6.2f %s\n",
			truncate(s.Label, 36), s.Ranges, s.MeanReturn*100, s.MeanSharpe,
			s.WorstDrawdown*100, s.TotalTrades, s.CompositeScore, verdict)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

func normalize(value, min, max float64) float64 {
	if max-min == 0 {
		return 0
	}
	v := (value - min) / (max - min)
	return math.Max(0, math.Min(1, v))
}
