// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig controls log output, rotation and console colors.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal color names.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ProviderConfig holds the remote browsing provider endpoint and tuning knobs.
// The API key is only ever read from the environment, never from config files.
type ProviderConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey          string        `mapstructure:"api_key" yaml:"-"`
	APITimeout      time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollMaxInterval time.Duration `mapstructure:"poll_max_interval" yaml:"poll_max_interval"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth   int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	SolveCaptchas   bool          `mapstructure:"solve_captchas" yaml:"solve_captchas"`
}

// AnalysisConfig bounds a single checkout analysis run.
type AnalysisConfig struct {
	Budget           time.Duration `mapstructure:"budget" yaml:"budget"`
	TerminationGrace time.Duration `mapstructure:"termination_grace" yaml:"termination_grace"`
	MaxConcurrent    int64         `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddress  string        `mapstructure:"listen_address" yaml:"listen_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// DatabaseConfig holds the optional Postgres connection string. When empty
// the server falls back to its in-memory registry.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// SetDefaults registers the default value for every configuration key on the
// given viper instance. Call this before reading config files so absent keys
// resolve to sane values.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "gatescout")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "gatescout.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// Provider
	v.SetDefault("provider.base_url", "https://api.cloudbrowse.example/v1")
	v.SetDefault("provider.api_timeout", 30*time.Second)
	v.SetDefault("provider.poll_interval", 2*time.Second)
	v.SetDefault("provider.poll_max_interval", 10*time.Second)
	v.SetDefault("provider.rate_limit_per_sec", 5.0)
	v.SetDefault("provider.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("provider.viewport_width", 1920)
	v.SetDefault("provider.viewport_height", 1080)
	v.SetDefault("provider.solve_captchas", true)

	// Analysis
	v.SetDefault("analysis.budget", 2*time.Minute)
	v.SetDefault("analysis.termination_grace", 10*time.Second)
	v.SetDefault("analysis.max_concurrent", 4)

	// Server
	v.SetDefault("server.listen_address", ":8799")
	v.SetDefault("server.request_timeout", 120*time.Second)

	// Database
	v.SetDefault("database.url", "")
}

// NewConfigFromViper unmarshals the full configuration from a viper instance
// and validates it. Secrets are bound to environment variables here so they
// never need to live in a config file.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	if err := v.BindEnv("provider.api_key", "GATESCOUT_PROVIDER_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind provider.api_key: %w", err)
	}
	if err := v.BindEnv("database.url", "GATESCOUT_DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind database.url: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section for values that would break at runtime.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Validate checks logger settings.
func (l *LoggerConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("unknown log level %q", l.Level)
	}
	switch l.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", l.Format)
	}
	if l.ServiceName == "" {
		return fmt.Errorf("service_name must not be empty")
	}
	return nil
}

// Validate checks provider settings.
func (p *ProviderConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must start with http:// or https://", p.BaseURL)
	}
	if p.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be positive, got %s", p.APITimeout)
	}
	if p.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", p.PollInterval)
	}
	if p.PollMaxInterval < p.PollInterval {
		return fmt.Errorf("poll_max_interval %s must not be below poll_interval %s",
			p.PollMaxInterval, p.PollInterval)
	}
	if p.RateLimitPerSec <= 0 {
		return fmt.Errorf("rate_limit_per_sec must be positive, got %g", p.RateLimitPerSec)
	}
	if p.ViewportWidth <= 0 || p.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive, got %dx%d",
			p.ViewportWidth, p.ViewportHeight)
	}
	return nil
}

// Validate checks analysis settings.
func (a *AnalysisConfig) Validate() error {
	if a.Budget <= 0 {
		return fmt.Errorf("budget must be positive, got %s", a.Budget)
	}
	if a.TerminationGrace <= 0 {
		return fmt.Errorf("termination_grace must be positive, got %s", a.TerminationGrace)
	}
	if a.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive, got %d", a.MaxConcurrent)
	}
	return nil
}

// Validate checks server settings.
func (s *ServerConfig) Validate() error {
	if s.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", s.RequestTimeout)
	}
	return nil
}
