// Package main provides the driftwatch server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Figma     FigmaConfig     `yaml:"figma"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Notify    NotifyConfig    `yaml:"notify"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Log       LogConfig       `yaml:"log"`

	Verbose bool `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Address string `yaml:"address"` // HTTP listen address (default: :8080)
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // metrics listen address (default: :9090)
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // database file path (default: data/driftwatch.db)
}

// RedisConfig contains the shared rate limit counter backend. An empty
// address falls back to in-process counters, which only hold for a
// single instance.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// FigmaConfig contains upstream API settings.
type FigmaConfig struct {
	BaseURL string `yaml:"base_url"` // override for tests and proxies
}

// SchedulerConfig contains reconciliation loop settings. Durations are
// Go duration strings.
type SchedulerConfig struct {
	Interval    string `yaml:"interval"`    // empty disables the internal ticker
	Concurrency int    `yaml:"concurrency"` // fan-out width (default: 5)
	RunTimeout  string `yaml:"run_timeout"` // deadline for one full pass (default: 5m)
}

// RateLimitConfig points at the per-integration budget table.
type RateLimitConfig struct {
	BudgetsFile string `yaml:"budgets_file"` // optional, hot-reloaded on change
}

// NotifyConfig bounds outbound webhook delivery.
type NotifyConfig struct {
	PerMinute int `yaml:"per_minute"` // sustained delivery rate (default: 10)
	Burst     int `yaml:"burst"`      // burst allowance (default: 5)
}

// DashboardConfig holds the product URL alerts deep-link back to.
type DashboardConfig struct {
	BaseURL string `yaml:"base_url"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Mode  string `yaml:"mode"`  // "production" or "development" (default: production)
	Level string `yaml:"level"` // debug, info, warn, error (default: info)
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/driftwatch.db"
	}
	if c.Scheduler.Concurrency == 0 {
		c.Scheduler.Concurrency = 5
	}
	if c.Scheduler.RunTimeout == "" {
		c.Scheduler.RunTimeout = "5m"
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "production"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Scheduler.Concurrency < 0 {
		return fmt.Errorf("scheduler.concurrency must not be negative")
	}
	if _, err := c.SchedulerInterval(); err != nil {
		return fmt.Errorf("invalid scheduler.interval: %w", err)
	}
	if _, err := c.SchedulerRunTimeout(); err != nil {
		return fmt.Errorf("invalid scheduler.run_timeout: %w", err)
	}
	if c.RateLimit.BudgetsFile != "" {
		if _, err := os.Stat(c.RateLimit.BudgetsFile); err != nil {
			return fmt.Errorf("ratelimit.budgets_file: %w", err)
		}
	}
	switch c.Log.Mode {
	case "production", "development":
	default:
		return fmt.Errorf("log.mode must be 'production' or 'development'")
	}
	return nil
}

// SchedulerInterval parses the ticker interval. Zero means disabled.
func (c *Config) SchedulerInterval() (time.Duration, error) {
	if c.Scheduler.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Scheduler.Interval)
}

// SchedulerRunTimeout parses the per-run deadline.
func (c *Config) SchedulerRunTimeout() (time.Duration, error) {
	if c.Scheduler.RunTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Scheduler.RunTimeout)
}
