// Package main provides the grid testing CLI: it runs a grid of strategy
// configurations across sequential date ranges with checkpointing and
// progressive filtering.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/quantgrid/internal/backtest"
	"github.com/yourusername/quantgrid/internal/config"
	"github.com/yourusername/quantgrid/internal/data"
	"github.com/yourusername/quantgrid/internal/database"
	"github.com/yourusername/quantgrid/internal/logger"
	"github.com/yourusername/quantgrid/internal/metrics"
	"github.com/yourusername/quantgrid/internal/repository"
	"github.com/yourusername/quantgrid/internal/scheduler"
	"github.com/yourusername/quantgrid/internal/strategy"
	"github.com/yourusername/quantgrid/internal/vectorized"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	gridPath   string
	storageDir string
	workers    int
	resume     bool
	topN       int
	persist    bool
	daemon     bool

	appLogger *logrus.Logger
	cfg       *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&gridPath, "grid", "g", "./config/grid.yaml", "Path to grid definition file")
	rootCmd.Flags().StringVar(&storageDir, "storage-dir", "", "Override storage directory for results and checkpoints")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (0 sequential, -1 auto)")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "Resume from checkpoints in the storage directory")
	rootCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only the top N strategies after each range")
	rootCmd.Flags().BoolVar(&persist, "persist", false, "Persist summaries to the database")
	rootCmd.Flags().BoolVar(&daemon, "daemon", false, "Run on the configured cron schedule instead of once")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "gridtest",
	Short: "Run a strategy grid across sequential date ranges",
	Long: `Runs every strategy in a grid file over every configured date range,
in batches with bounded parallelism, checkpointing finished work and
progressively filtering weak strategies between ranges.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemon {
			return runDaemon()
		}
		ctx, cancel := signalContext()
		defer cancel()
		return runGrid(ctx)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <storage-dir>",
	Short: "Summarize previously persisted grid results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backtests, err := vectorized.LoadBacktestsFromDirectory(args[0], appLogger)
		if err != nil {
			return err
		}
		fmt.Print(vectorized.RenderTable(vectorized.SummarizeAll(backtests)))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gridtest %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func setup() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLogger = logger.NewLogger(cfg.App.LogLevel)
	return nil
}

func runGrid(ctx context.Context) error {
	configs, ranges, err := loadGridFile(gridPath)
	if err != nil {
		return err
	}
	appLogger.WithFields(logrus.Fields{
		"strategies": len(configs),
		"ranges":     len(ranges),
	}).Info("Loaded grid definition")

	orch, err := buildOrchestrator()
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		startMetricsServer()
	}

	report, err := orch.Run(ctx, configs, ranges)
	if err != nil {
		return fmt.Errorf("grid run failed: %w", err)
	}

	summaries := vectorized.SummarizeAll(report.Backtests)
	fmt.Print(vectorized.RenderTable(summaries))
	appLogger.WithFields(logrus.Fields{
		"completed":    report.Completed,
		"skipped":      report.Skipped,
		"failed":       report.Failed,
		"filtered_out": report.FilteredOut,
		"selected":     len(report.Selected),
	}).Info("Grid run complete")

	if persist {
		if err := persistSummaries(ctx, report); err != nil {
			return err
		}
	}
	return nil
}

func buildOrchestrator() (*vectorized.Orchestrator, error) {
	provider, err := buildProvider()
	if err != nil {
		return nil, err
	}

	registry := strategy.NewRegistry()
	engineCfg := backtest.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		CommissionRate: cfg.Backtest.CommissionRate,
		SlippageBps:    cfg.Backtest.SlippageBps,
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
	}
	engine, err := backtest.NewEngine(engineCfg, provider, registry, appLogger)
	if err != nil {
		return nil, err
	}

	opts := vectorized.Options{
		BatchSize:           cfg.Grid.BatchSize,
		CheckpointBatchSize: cfg.Grid.CheckpointBatchSize,
		Workers:             cfg.Grid.Workers,
		UseCheckpoints:      cfg.Grid.UseCheckpoints,
		StorageDir:          cfg.Grid.StorageDir,
		ContinueOnError:     cfg.Grid.ContinueOnError,
		ShowProgress:        cfg.Grid.ShowProgress,
		ItemTimeout:         cfg.Grid.ItemTimeout(),
	}
	if storageDir != "" {
		opts.StorageDir = storageDir
	}
	if workers != 0 {
		opts.Workers = workers
	}
	if resume {
		opts.UseCheckpoints = true
	}

	windowN := cfg.Grid.WindowTopN
	if topN > 0 {
		windowN = topN
	}
	if windowN > 0 {
		opts.WindowFilter = vectorized.TopN(windowN, vectorized.SharpeMetric)
	}
	if cfg.Grid.FinalTopN > 0 {
		opts.FinalFilter = finalFilter(cfg.Grid.FinalTopN)
	}

	runner := vectorized.RunnerFunc(func(ctx context.Context, sc strategy.Config, rng vectorized.DateRange) (*backtest.RunResult, error) {
		return engine.Run(ctx, sc, rng.Start, rng.End)
	})
	return vectorized.NewOrchestrator(runner, opts, appLogger)
}

func buildProvider() (data.Provider, error) {
	switch cfg.Data.Provider {
	case "csv":
		return data.NewCSVProvider(cfg.Data.Dir, appLogger)
	case "http":
		httpCfg := data.DefaultHTTPProviderConfig(cfg.Data.BaseURL)
		httpCfg.APIKey = cfg.Data.APIKey
		if cfg.Data.RateLimit > 0 {
			httpCfg.RateLimit = cfg.Data.RateLimit
		}
		return data.NewHTTPProvider(httpCfg, appLogger)
	default:
		return nil, fmt.Errorf("unknown data provider %q", cfg.Data.Provider)
	}
}

// finalFilter ranks strategies by mean Sharpe across their completed ranges
func finalFilter(n int) vectorized.FinalFilterFunc {
	return func(all []*vectorized.Backtest) ([]*vectorized.Backtest, error) {
		summaries := vectorized.SummarizeAll(all)
		if len(summaries) > n {
			summaries = summaries[:n]
		}
		keep := make(map[string]bool, len(summaries))
		for _, s := range summaries {
			keep[s.Identity.String()] = true
		}
		selected := make([]*vectorized.Backtest, 0, n)
		for _, bt := range all {
			if keep[bt.Identity.String()] {
				selected = append(selected, bt)
			}
		}
		return selected, nil
	}
}

func persistSummaries(ctx context.Context, report *vectorized.Report) error {
	if !cfg.Database.Enabled {
		return fmt.Errorf("database is disabled in configuration")
	}
	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := repository.NewPostgresGridResultRepository(db)
	for _, bt := range report.Backtests {
		if err := repo.SaveSummary(ctx, bt, vectorized.Summarize(bt)); err != nil {
			return err
		}
	}
	appLogger.WithField("strategies", len(report.Backtests)).Info("Persisted grid summaries")
	return nil
}

func runDaemon() error {
	if !cfg.Schedule.Enabled {
		return fmt.Errorf("schedule is disabled in configuration")
	}

	sched := scheduler.NewScheduler(appLogger)
	if err := sched.ScheduleGridRefresh(cfg.Schedule.Cron, runGrid); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	if cfg.Metrics.Enabled {
		startMetricsServer()
	}

	appLogger.WithField("next_run", sched.GetNextRun()).Info("Daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down")
	return nil
}

func startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())
	addr := fmt.Sprintf(":%d", cfg.Metrics.Port)

	go func() {
		appLogger.WithField("addr", addr).Info("Metrics server listening")
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Error("Metrics server failed")
		}
	}()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}
