// Package config handles configuration loading and validation for dbpool.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/dbpool/internal/data/db"
	"github.com/colonyops/dbpool/internal/dispatch"
)

// Config holds the application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Pool     PoolConfig     `yaml:"pool"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds the connection parameters shared by the dispatcher
// and every worker.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`   // mysql, postgres or sqlite
	Host     string `yaml:"host"`     // host[:port]; unused for sqlite
	User     string `yaml:"user"`     // unused for sqlite
	Password string `yaml:"password"` // unused for sqlite
	Name     string `yaml:"name"`     // database name, or file path for sqlite; empty = none
}

// PoolConfig holds worker pool settings.
type PoolConfig struct {
	// Workers is the number of background workers. nil selects the default;
	// 0 disables the pool.
	Workers        *int          `yaml:"workers"`
	Interval       time.Duration `yaml:"interval"`
	ConnectRetries int           `yaml:"connect_retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	workers := 1
	return Config{
		Database: DatabaseConfig{
			Driver: string(db.DriverMySQL),
		},
		Pool: PoolConfig{
			Workers:        &workers,
			Interval:       dispatch.DefaultInterval,
			ConnectRetries: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path. If configPath is empty or
// doesn't exist, returns defaults. The result is not validated so callers
// can apply flag overrides first.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Database.Driver == "" {
		c.Database.Driver = defaults.Database.Driver
	}
	if c.Pool.Workers == nil {
		c.Pool.Workers = defaults.Pool.Workers
	}
	if c.Pool.Interval == 0 {
		c.Pool.Interval = defaults.Pool.Interval
	}
	if c.Pool.ConnectRetries == 0 {
		c.Pool.ConnectRetries = defaults.Pool.ConnectRetries
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// WorkerCount returns the configured number of workers.
func (c *Config) WorkerCount() int {
	if c.Pool.Workers == nil {
		return 1
	}
	return *c.Pool.Workers
}

// SetWorkers overrides the worker count.
func (c *Config) SetWorkers(n int) {
	c.Pool.Workers = &n
}

// Params converts the database section into connection parameters.
func (c *Config) Params() db.Params {
	return db.Params{
		Driver:   db.Driver(c.Database.Driver),
		Host:     c.Database.Host,
		User:     c.Database.User,
		Password: c.Database.Password,
		Database: c.Database.Name,
		Retries:  c.Pool.ConnectRetries,
	}
}

// DispatchOptions converts the pool section into dispatcher options.
func (c *Config) DispatchOptions() []dispatch.Option {
	return []dispatch.Option{
		dispatch.WithWorkers(c.WorkerCount()),
		dispatch.WithInterval(c.Pool.Interval),
	}
}
