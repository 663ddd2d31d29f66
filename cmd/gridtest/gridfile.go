package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/viper"

	"github.com/yourusername/quantgrid/internal/models"
	"github.com/yourusername/quantgrid/internal/strategy"
	"github.com/yourusername/quantgrid/internal/vectorized"
)

// gridFile is the YAML description of a grid run: the strategies to test
// and the date ranges to test them over
type gridFile struct {
	Strategies []gridStrategy `mapstructure:"strategies"`
	Ranges     []gridRange    `mapstructure:"ranges"`
}

// gridStrategy describes either one strategy instance (params) or a family
// of instances (param_grid, expanded as a cartesian product)
type gridStrategy struct {
	Name      string           `mapstructure:"name"`
	Symbol    string           `mapstructure:"symbol"`
	Timeframe string           `mapstructure:"timeframe"`
	Params    map[string]any   `mapstructure:"params"`
	ParamGrid map[string][]any `mapstructure:"param_grid"`
}

type gridRange struct {
	Name  string `mapstructure:"name"`
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// loadGridFile parses a grid YAML file into strategy configs and ranges
func loadGridFile(path string) ([]strategy.Config, []vectorized.DateRange, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read grid file: %w", err)
	}

	var file gridFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse grid file: %w", err)
	}
	if len(file.Strategies) == 0 {
		return nil, nil, fmt.Errorf("grid file defines no strategies")
	}
	if len(file.Ranges) == 0 {
		return nil, nil, fmt.Errorf("grid file defines no ranges")
	}

	configs := make([]strategy.Config, 0, len(file.Strategies))
	for i, gs := range file.Strategies {
		expanded, err := expandStrategy(gs)
		if err != nil {
			return nil, nil, fmt.Errorf("strategy %d: %w", i, err)
		}
		configs = append(configs, expanded...)
	}

	ranges := make([]vectorized.DateRange, 0, len(file.Ranges))
	for i, gr := range file.Ranges {
		rng, err := parseRange(gr)
		if err != nil {
			return nil, nil, fmt.Errorf("range %d: %w", i, err)
		}
		ranges = append(ranges, rng)
	}

	return configs, ranges, nil
}

// expandStrategy turns one grid entry into concrete configs. A param_grid
// produces the cartesian product of its value lists, merged over Params.
func expandStrategy(gs gridStrategy) ([]strategy.Config, error) {
	base := strategy.Config{
		Name:      gs.Name,
		Symbol:    gs.Symbol,
		Timeframe: models.Timeframe(gs.Timeframe),
	}

	if len(gs.ParamGrid) == 0 {
		base.Params = gs.Params
		if err := base.Validate(); err != nil {
			return nil, err
		}
		return []strategy.Config{base}, nil
	}

	// Sorted keys keep the expansion order deterministic across runs
	keys := make([]string, 0, len(gs.ParamGrid))
	for key := range gs.ParamGrid {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	combos := []map[string]any{{}}
	for _, key := range keys {
		values := gs.ParamGrid[key]
		if len(values) == 0 {
			return nil, fmt.Errorf("param_grid key %q has no values", key)
		}
		next := make([]map[string]any, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, value := range values {
				merged := make(map[string]any, len(combo)+1)
				for k, v := range combo {
					merged[k] = v
				}
				merged[key] = value
				next = append(next, merged)
			}
		}
		combos = next
	}

	configs := make([]strategy.Config, 0, len(combos))
	for _, combo := range combos {
		cfg := base
		cfg.Params = make(map[string]any, len(gs.Params)+len(combo))
		for k, v := range gs.Params {
			cfg.Params[k] = v
		}
		for k, v := range combo {
			cfg.Params[k] = v
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func parseRange(gr gridRange) (vectorized.DateRange, error) {
	start, err := time.Parse("2006-01-02", gr.Start)
	if err != nil {
		return vectorized.DateRange{}, fmt.Errorf("invalid start date %q: %w", gr.Start, err)
	}
	end, err := time.Parse("2006-01-02", gr.End)
	if err != nil {
		return vectorized.DateRange{}, fmt.Errorf("invalid end date %q: %w", gr.End, err)
	}
	rng := vectorized.DateRange{Start: start, End: end, Name: gr.Name}
	return rng, rng.Validate()
}
