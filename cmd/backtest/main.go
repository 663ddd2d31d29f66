// Package main provides the entry point for the single-run backtest CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantgrid/internal/backtest"
	"github.com/yourusername/quantgrid/internal/config"
	"github.com/yourusername/quantgrid/internal/data"
	"github.com/yourusername/quantgrid/internal/logger"
	"github.com/yourusername/quantgrid/internal/models"
	"github.com/yourusername/quantgrid/internal/strategy"
)

func main() {
	var (
		configPath   = flag.String("config", "config/config.yaml", "Path to config file")
		strategyName = flag.String("strategy", strategy.NameSMACross, "Strategy name to test")
		symbol       = flag.String("symbol", "", "Symbol to test")
		timeframe    = flag.String("timeframe", "1h", "Candle timeframe")
		startDate    = flag.String("start-date", "", "Start date (YYYY-MM-DD)")
		endDate      = flag.String("end-date", "", "End date (YYYY-MM-DD)")
		paramsJSON   = flag.String("params", "", "Strategy parameters as JSON")
		output       = flag.String("output", "", "Write the full result JSON to this path")
	)
	flag.Parse()

	cfg := loadConfigWithSecrets(*configPath)
	log := logger.NewLogger(cfg.App.LogLevel)
	ctx := context.Background()

	strategyCfg := buildStrategyConfig(*strategyName, *symbol, *timeframe, *paramsJSON, log)
	start, end := parseDates(*startDate, *endDate, log)

	engine := buildEngine(cfg, log)
	log.WithFields(logrus.Fields{"strategy": strategyCfg.Label()}).Info("Starting backtest")

	result, err := engine.Run(ctx, strategyCfg, start, end)
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	printSummary(result, log)
	if *output != "" {
		writeResult(result, *output, log)
	}
}

func loadConfigWithSecrets(path string) *config.Config {
	boot := logrus.New()
	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		boot.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			boot.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			boot.Fatalf("Failed to load secrets: %v", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		boot.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func buildStrategyConfig(name, symbol, timeframe, paramsJSON string, log *logrus.Logger) strategy.Config {
	cfg := strategy.Config{
		Name:      name,
		Symbol:    symbol,
		Timeframe: models.Timeframe(timeframe),
	}
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &cfg.Params); err != nil {
			log.Fatalf("Invalid params JSON: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid strategy config: %v", err)
	}
	return cfg
}

func parseDates(startRaw, endRaw string, log *logrus.Logger) (time.Time, time.Time) {
	if startRaw == "" || endRaw == "" {
		log.Fatal("start-date and end-date are required")
	}
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}
	if !start.Before(end) {
		log.Fatal("start-date must be before end-date")
	}
	return start, end
}

func buildEngine(cfg *config.Config, log *logrus.Logger) *backtest.Engine {
	var provider data.Provider
	var err error
	switch cfg.Data.Provider {
	case "csv":
		provider, err = data.NewCSVProvider(cfg.Data.Dir, log)
	case "http":
		httpCfg := data.DefaultHTTPProviderConfig(cfg.Data.BaseURL)
		httpCfg.APIKey = cfg.Data.APIKey
		provider, err = data.NewHTTPProvider(httpCfg, log)
	default:
		log.Fatalf("Unknown data provider: %s", cfg.Data.Provider)
	}
	if err != nil {
		log.Fatalf("Failed to create data provider: %v", err)
	}

	engine, err := backtest.NewEngine(backtest.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		CommissionRate: cfg.Backtest.CommissionRate,
		SlippageBps:    cfg.Backtest.SlippageBps,
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
	}, provider, strategy.NewRegistry(), log)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

func printSummary(result *backtest.RunResult, log *logrus.Logger) {
	m := result.Metrics
	log.WithFields(logrus.Fields{
		"total_return": fmt.Sprintf("%.2f%%", m.TotalReturn*100),
		"sharpe":       fmt.Sprintf("%.2f", m.SharpeRatio),
		"max_drawdown": fmt.Sprintf("%.2f%%", m.MaxDrawdown*100),
		"trades":       m.TotalTrades,
		"win_rate":     fmt.Sprintf("%.1f%%", m.WinRate*100),
	}).Info("Backtest complete")
}

func writeResult(result *backtest.RunResult, path string, log *logrus.Logger) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal result: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
	log.WithField("path", path).Info("Result written")
}
