// Package logger provides a wrapper around logrus for structured logging.
package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a new configured logger instance. Output format follows
// the runtime environment; QUANTGRID_LOG_FORMAT=json|text forces one.
func NewLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()

	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logger.Warnf("Invalid log level '%s', defaulting to info", logLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if useJSONFormat() {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}

	return logger
}

// useJSONFormat picks JSON for deployed environments, colored text for
// local development
func useJSONFormat() bool {
	switch os.Getenv("QUANTGRID_LOG_FORMAT") {
	case "json":
		return true
	case "text":
		return false
	}
	env := os.Getenv("ENVIRONMENT")
	return env == "production" || env == "staging"
}
