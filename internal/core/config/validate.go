package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/colonyops/dbpool/internal/data/db"
)

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	driver := db.Driver(c.Database.Driver)
	if !slices.Contains(db.Drivers, driver) {
		errs = errs.Append("database.driver", fmt.Errorf("unsupported driver %q (want one of %v)", c.Database.Driver, db.Drivers))
	}

	switch driver {
	case db.DriverSQLite:
		if c.Database.Name == "" {
			errs = errs.Append("database.name", fmt.Errorf("sqlite requires a database file path"))
		}
	case db.DriverMySQL, db.DriverPostgres:
		if c.Database.Host == "" {
			errs = errs.Append("database.host", fmt.Errorf("host is required"))
		}
	}

	if c.WorkerCount() < 0 {
		errs = errs.Append("pool.workers", fmt.Errorf("must not be negative, got %d", c.WorkerCount()))
	}
	if c.Pool.Interval <= 0 {
		errs = errs.Append("pool.interval", fmt.Errorf("must be positive, got %s", c.Pool.Interval))
	}
	if c.Pool.ConnectRetries < 0 {
		errs = errs.Append("pool.connect_retries", fmt.Errorf("must not be negative, got %d", c.Pool.ConnectRetries))
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = errs.Append("log.level", err)
	}

	return errs.ToError()
}

// ValidateDeep performs Validate plus filesystem checks. The configPath
// argument specifies the config file location to validate (empty string
// skips the config file check).
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var sqliteDir string
	if db.Driver(c.Database.Driver) == db.DriverSQLite {
		sqliteDir = filepath.Dir(c.Database.Name)
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("database.name", sqliteDir, isDirectoryOrEmpty),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrEmpty validates that path is empty or an existing directory.
func isDirectoryOrEmpty(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
