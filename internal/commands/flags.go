package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/dbpool/internal/core/config"
	"github.com/colonyops/dbpool/internal/core/logging"
	"github.com/colonyops/dbpool/internal/data/db"
	"github.com/colonyops/dbpool/internal/dispatch"
	"github.com/colonyops/dbpool/internal/profiler"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Connection overrides; empty values leave the config file untouched.
	Driver      string
	Host        string
	User        string
	Password    string
	Database    string
	Workers     int
	AskPassword bool

	// ProfilePort enables the debug HTTP server when positive.
	ProfilePort int
	Profiler    *profiler.Server

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "dbpool", "config.yaml")
}

// Global returns the root command flags bound to f.
func (f *Flags) Global() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error, fatal, panic)",
			Sources:     cli.EnvVars("DBPOOL_LOG_LEVEL"),
			Destination: &f.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "write JSON logs to this file instead of stderr",
			Sources:     cli.EnvVars("DBPOOL_LOG_FILE"),
			Destination: &f.LogFile,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to config file",
			Sources:     cli.EnvVars("DBPOOL_CONFIG"),
			Value:       DefaultConfigPath(),
			Destination: &f.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "driver",
			Usage:       "database driver (mysql, postgres, sqlite)",
			Sources:     cli.EnvVars("DBPOOL_DRIVER"),
			Destination: &f.Driver,
		},
		&cli.StringFlag{
			Name:        "host",
			Usage:       "database host[:port]",
			Sources:     cli.EnvVars("DBPOOL_HOST"),
			Destination: &f.Host,
		},
		&cli.StringFlag{
			Name:        "user",
			Usage:       "database user",
			Sources:     cli.EnvVars("DBPOOL_USER"),
			Destination: &f.User,
		},
		&cli.StringFlag{
			Name:        "password",
			Usage:       "database password",
			Sources:     cli.EnvVars("DBPOOL_PASSWORD"),
			Destination: &f.Password,
		},
		&cli.StringFlag{
			Name:        "database",
			Usage:       "default database, or file path for sqlite",
			Sources:     cli.EnvVars("DBPOOL_DATABASE"),
			Destination: &f.Database,
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "number of background workers (0 runs async statements inline)",
			Sources:     cli.EnvVars("DBPOOL_WORKERS"),
			Value:       -1,
			Destination: &f.Workers,
		},
		&cli.BoolFlag{
			Name:        "ask-password",
			Usage:       "prompt for the database password",
			Destination: &f.AskPassword,
		},
		&cli.IntFlag{
			Name:        "pprof-port",
			Usage:       "serve pprof and worker counters on 127.0.0.1:<port>",
			Sources:     cli.EnvVars("DBPOOL_PPROF_PORT"),
			Destination: &f.ProfilePort,
		},
	}
}

// Apply copies explicitly set overrides onto cfg.
func (f *Flags) Apply(cfg *config.Config) {
	if f.Driver != "" {
		cfg.Database.Driver = f.Driver
	}
	if f.Host != "" {
		cfg.Database.Host = f.Host
	}
	if f.User != "" {
		cfg.Database.User = f.User
	}
	if f.Password != "" {
		cfg.Database.Password = f.Password
	}
	if f.Database != "" {
		cfg.Database.Name = f.Database
	}
	if f.Workers >= 0 {
		cfg.SetWorkers(f.Workers)
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
}

// OpenDispatcher validates the loaded configuration, prompts for a password
// when asked to and connects a dispatcher.
func (f *Flags) OpenDispatcher(ctx context.Context, opts ...dispatch.Option) (*dispatch.Dispatcher, error) {
	if f.Config == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	if err := f.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := f.ResolvePassword(); err != nil {
		return nil, err
	}

	params := f.Config.Params()
	connect := dispatch.Connector(func(ctx context.Context) (*db.Handle, error) {
		return db.Open(ctx, params)
	})

	all := append(f.Config.DispatchOptions(), dispatch.WithLogger(logging.Component("dispatch")))
	all = append(all, opts...)

	d, err := dispatch.New(ctx, connect, all...)
	if err != nil {
		return nil, fmt.Errorf("open dispatcher: %w", err)
	}

	if f.Profiler != nil {
		f.Profiler.Attach(d)
	}
	return d, nil
}
