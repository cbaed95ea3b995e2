// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	return cfg
}

// -- Defaults Tests --

func TestDefaults(t *testing.T) {
	cfg := newDefaultConfig(t)

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "gatescout", cfg.Logger.ServiceName)
	assert.Equal(t, "https://api.cloudbrowse.example/v1", cfg.Provider.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Provider.APITimeout)
	assert.Equal(t, 2*time.Second, cfg.Provider.PollInterval)
	assert.Equal(t, 1920, cfg.Provider.ViewportWidth)
	assert.Equal(t, 1080, cfg.Provider.ViewportHeight)
	assert.True(t, cfg.Provider.SolveCaptchas)
	assert.Equal(t, 2*time.Minute, cfg.Analysis.Budget)
	assert.Equal(t, 10*time.Second, cfg.Analysis.TerminationGrace)
	assert.Equal(t, int64(4), cfg.Analysis.MaxConcurrent)
	assert.Equal(t, ":8799", cfg.Server.ListenAddress)
	assert.Empty(t, cfg.Database.URL)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Valid Defaults", func(t *testing.T) {
		cfg := newDefaultConfig(t)
		assert.NoError(t, cfg.Validate(), "the default config should validate cleanly")
	})

	t.Run("Invalid Log Level", func(t *testing.T) {
		cfg := newDefaultConfig(t)
		cfg.Logger.Level = "verbose"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown log level")
	})

	t.Run("Invalid Log Format", func(t *testing.T) {
		cfg := newDefaultConfig(t)
		cfg.Logger.Format = "xml"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown log format")
	})

	t.Run("Invalid Provider URL", func(t *testing.T) {
		cfg := newDefaultConfig(t)
		cfg.Provider.BaseURL = "ftp://example.com"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must start with http:// or https://")
	})

	t.Run("Poll Interval Ordering", func(t *testing.T) {
		cfg := newDefaultConfig(t)
		cfg.Provider.PollInterval = 10 * time.Second
		cfg.Provider.PollMaxInterval = 2 * time.Second
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "poll_max_interval")
	})

	t.Run("Invalid Budget", func(t *testing.T) {
		cfg := newDefaultConfig(t)
		cfg.Analysis.Budget = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "budget must be positive")
	})

	t.Run("Invalid Max Concurrent", func(t *testing.T) {
		cfg := newDefaultConfig(t)
		cfg.Analysis.MaxConcurrent = -1
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_concurrent must be positive")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
logger:
  level: debug
  log_file: /var/log/gatescout.log
provider:
  base_url: "https://provider.internal/v2"
  poll_interval: 5s
  poll_max_interval: 30s
analysis:
  budget: 90s
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Logger.Level)
		assert.Equal(t, "/var/log/gatescout.log", cfg.Logger.LogFile)
		assert.Equal(t, "https://provider.internal/v2", cfg.Provider.BaseURL)
		assert.Equal(t, 5*time.Second, cfg.Provider.PollInterval)
		assert.Equal(t, 90*time.Second, cfg.Analysis.Budget)
		// Check a default value survives alongside overrides.
		assert.Equal(t, ":8799", cfg.Server.ListenAddress)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("analysis.budget", "0s") // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "budget must be positive")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		// Simulate a lower-precedence config file value.
		yamlConfig := []byte(`
database:
  url: "postgres://configfile/db"
`)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlConfig))
		require.NoError(t, err)

		testAPIKey := "sk-test-key-456"
		t.Setenv("GATESCOUT_PROVIDER_API_KEY", testAPIKey)
		testDBURL := "postgres://envvar/db"
		t.Setenv("GATESCOUT_DATABASE_URL", testDBURL)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, testAPIKey, cfg.Provider.APIKey)
		// The env var must override the value from the config buffer.
		assert.Equal(t, testDBURL, cfg.Database.URL)
	})
}
