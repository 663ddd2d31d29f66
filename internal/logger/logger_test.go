package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// TestNewLoggerSetsLevel tests that valid levels are applied and invalid
// ones fall back to info
func TestNewLoggerSetsLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.WarnLevel, NewLogger("warn").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("verbose").GetLevel())
}

// TestNewLoggerFormatSelection tests formatter choice across environment
// and override combinations
func TestNewLoggerFormatSelection(t *testing.T) {
	t.Setenv("QUANTGRID_LOG_FORMAT", "")
	t.Setenv("ENVIRONMENT", "development")
	assert.IsType(t, &logrus.TextFormatter{}, NewLogger("info").Formatter)

	t.Setenv("ENVIRONMENT", "production")
	assert.IsType(t, &logrus.JSONFormatter{}, NewLogger("info").Formatter)

	t.Setenv("ENVIRONMENT", "staging")
	assert.IsType(t, &logrus.JSONFormatter{}, NewLogger("info").Formatter)

	// explicit override wins over the environment
	t.Setenv("QUANTGRID_LOG_FORMAT", "text")
	assert.IsType(t, &logrus.TextFormatter{}, NewLogger("info").Formatter)

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("QUANTGRID_LOG_FORMAT", "json")
	assert.IsType(t, &logrus.JSONFormatter{}, NewLogger("info").Formatter)
}
