// Package config provides configuration management for the QuantGrid
// application.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Data     DataConfig     `mapstructure:"data" validate:"required"`
	Backtest BacktestConfig `mapstructure:"backtest" validate:"required"`
	Grid     GridConfig     `mapstructure:"grid" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics" validate:"required"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration. The database
// is optional: persistence of grid summaries is skipped when disabled.
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_if=Enabled true"`
	User               string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"omitempty,gt=0"`
}

// DataConfig represents candle data source configuration
type DataConfig struct {
	Provider  string  `mapstructure:"provider" validate:"required,oneof=csv http"`
	Dir       string  `mapstructure:"dir"`
	BaseURL   string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey    string  `mapstructure:"api_key"`
	RateLimit float64 `mapstructure:"rate_limit" validate:"omitempty,gt=0"`
}

// BacktestConfig represents single-run simulation configuration
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital" validate:"required,gt=0"`
	CommissionRate float64 `mapstructure:"commission_rate" validate:"gte=0,lte=0.1"`
	SlippageBps    int     `mapstructure:"slippage_bps" validate:"gte=0"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
}

// GridConfig represents orchestration configuration
type GridConfig struct {
	BatchSize           int    `mapstructure:"batch_size" validate:"omitempty,gt=0"`
	CheckpointBatchSize int    `mapstructure:"checkpoint_batch_size" validate:"omitempty,gt=0"`
	Workers             int    `mapstructure:"workers" validate:"gte=-1"`
	UseCheckpoints      bool   `mapstructure:"use_checkpoints"`
	StorageDir          string `mapstructure:"storage_dir"`
	ContinueOnError     bool   `mapstructure:"continue_on_error"`
	ShowProgress        bool   `mapstructure:"show_progress"`
	ItemTimeoutSeconds  int    `mapstructure:"item_timeout_seconds" validate:"gte=0"`
	WindowTopN          int    `mapstructure:"window_top_n" validate:"gte=0"`
	FinalTopN           int    `mapstructure:"final_top_n" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// ScheduleConfig represents periodic grid refresh scheduling
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron" validate:"required_if=Enabled true"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// ItemTimeout returns the per-run timeout as a duration
func (g GridConfig) ItemTimeout() time.Duration {
	return time.Duration(g.ItemTimeoutSeconds) * time.Second
}
