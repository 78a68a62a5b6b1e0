package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/dbpool/pkg/sqlio"
)

type BatchCmd struct {
	flags  *Flags
	reader *sqlio.Reader
	escape bool
	format string
}

// NewBatchCmd creates a new batch command
func NewBatchCmd(flags *Flags) *BatchCmd {
	return &BatchCmd{flags: flags, reader: &sqlio.Reader{}}
}

// Register adds the batch command to the application
func (cmd *BatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "batch",
		Usage: "Submit statements from files or stdin to the worker pool",
		UsageText: `dbpool batch [options]

Read from stdin:
  printf 'INSERT INTO t VALUES (1)\nINSERT INTO t VALUES (2)\n' | dbpool batch

Read from files:
  dbpool batch -f 'seed/**/*.sql'`,
		Description: `Reads one statement per line and submits each to the least-loaded worker.
Blank lines and lines starting with "--" are skipped and a trailing semicolon
is removed. Files matched by a glob are read in lexical order.

After every statement is submitted the pool is shut down, which waits for
all of them to run, and per-worker counters are printed.`,
		Flags: []cli.Flag{
			cmd.reader.Flag(),
			&cli.BoolFlag{
				Name:        "escape",
				Usage:       "escape each statement before submitting",
				Destination: &cmd.escape,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       formatText,
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *BatchCmd) run(ctx context.Context, c *cli.Command) error {
	if err := validFormat(cmd.format); err != nil {
		return err
	}

	stmts, err := cmd.reader.Read()
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if len(stmts) == 0 {
		return fmt.Errorf("no statements found in input")
	}

	log.Info().Int("statements", len(stmts)).Msg("starting batch")

	res, err := submitAll(ctx, cmd.flags, stmts, cmd.escape)
	if err != nil {
		return err
	}

	log.Info().
		Int64("executed", res.Executed).
		Int64("failed", res.Failed).
		Msg("batch complete")

	return writeBatch(c.Root().Writer, cmd.format, res)
}
