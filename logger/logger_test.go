package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/coderun/config"
)

func TestLoggerNew(t *testing.T) {
	t.Run("ValidDevelopmentMode", func(t *testing.T) {
		logger, err := New(config.LoggingConfig{Mode: "development", Level: "debug"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
		_ = logger.Sync()
	})

	t.Run("ValidProductionMode", func(t *testing.T) {
		logger, err := New(config.LoggingConfig{Mode: "production", Level: "info"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
		_ = logger.Sync()
	})

	t.Run("ConsoleEncodingInProduction", func(t *testing.T) {
		logger, err := New(config.LoggingConfig{Mode: "production", Level: "info", Encoding: "console"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("InvalidMode", func(t *testing.T) {
		_, err := New(config.LoggingConfig{Mode: "invalid_mode", Level: "info"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging mode")
	})

	t.Run("InvalidEncoding", func(t *testing.T) {
		_, err := New(config.LoggingConfig{Mode: "production", Level: "info", Encoding: "xml"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging encoding")
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := New(config.LoggingConfig{Mode: "production", Level: "invalid_level"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging level")
	})

	t.Run("ValidLevels", func(t *testing.T) {
		levels := []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
		for _, level := range levels {
			t.Run(level, func(t *testing.T) {
				logger, err := New(config.LoggingConfig{Mode: "production", Level: level})
				require.NoError(t, err)
				assert.NotNil(t, logger)
			})
		}
	})
}

func TestLoggerNewFromConfig(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := &config.Config{
			Logging: config.LoggingConfig{
				Mode:  "development",
				Level: "debug",
			},
		}
		logger, err := NewFromConfig(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := &config.Config{
			Logging: config.LoggingConfig{
				Mode:  "invalid_mode",
				Level: "info",
			},
		}
		_, err := NewFromConfig(cfg)
		assert.Error(t, err)
	})
}
