package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/dbpool/internal/commands"
	"github.com/colonyops/dbpool/internal/core/config"
	"github.com/colonyops/dbpool/internal/core/logging"
	"github.com/colonyops/dbpool/internal/profiler"
	"github.com/colonyops/dbpool/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "dbpool",
		Usage:     "Run SQL statements through a pool of background connections",
		UsageText: "dbpool [global options] command [command options]",
		Description: `dbpool dispatches fire-and-forget statements to a fixed pool of worker
connections, each draining its own queue on a short interval, while
synchronous statements and queries use a separate connection.

Connection settings come from the config file and can be overridden with
flags or DBPOOL_* environment variables.`,
		Version: build(),
		Flags:   flags.Global(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Apply(cfg)
			flags.Config = cfg

			logger, closer, err := logutils.New(cfg.Log.Level, flags.LogFile, logging.ContextHook{})
			if err != nil {
				// An invalid level is reported by config validation; keep
				// running with the default so that command can say so.
				logger, closer, err = logutils.New("info", flags.LogFile, logging.ContextHook{})
				if err != nil {
					return ctx, fmt.Errorf("setup logger: %w", err)
				}
			}
			log.Logger = logger
			logCloser = closer

			if flags.ProfilePort > 0 {
				srv := profiler.New(flags.ProfilePort)
				if err := srv.Start(ctx); err != nil {
					return ctx, err
				}
				flags.Profiler = srv
			}

			log.Debug().
				Str("config", flags.ConfigPath).
				Str("driver", cfg.Database.Driver).
				Int("workers", cfg.WorkerCount()).
				Msg("configuration loaded")

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if flags.Profiler != nil {
				shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := flags.Profiler.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("failed to stop profiler server")
				}
				cancel()
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewExecCmd(flags).Register(app)
	app = commands.NewAsyncCmd(flags).Register(app)
	app = commands.NewQueryCmd(flags).Register(app)
	app = commands.NewBatchCmd(flags).Register(app)
	app = commands.NewDemoCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
