package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/dbpool/internal/dispatch"
)

type AsyncCmd struct {
	flags  *Flags
	escape bool
	format string
}

// NewAsyncCmd creates a new async command
func NewAsyncCmd(flags *Flags) *AsyncCmd {
	return &AsyncCmd{flags: flags}
}

// Register adds the async command to the application
func (cmd *AsyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "async",
		Usage:     "Submit statements to the worker pool",
		UsageText: "dbpool async [--escape] <statement>...",
		Description: `Hands each argument to the least-loaded worker as a separate statement,
then shuts the pool down. Shutdown waits for every submitted statement to
run, so the summary reflects all of them.

Statements run in no particular order. Failures are logged and listed in the
summary; they do not change the exit code of earlier submissions.`,
		Flags: []cli.Flag{
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

func (cmd *AsyncCmd) run(ctx context.Context, c *cli.Command) error {
	if err := validFormat(cmd.format); err != nil {
		return err
	}

	stmts := c.Args().Slice()
	if len(stmts) == 0 {
		return fmt.Errorf("at least one statement is required")
	}

	res, err := submitAll(ctx, cmd.flags, stmts, cmd.escape)
	if err != nil {
		return err
	}
	return writeBatch(c.Root().Writer, cmd.format, res)
}

// submitAll opens a dispatcher, submits every statement asynchronously and
// closes it, which waits for the workers to drain. Statements rejected at
// submission are recorded as failures; only a closed dispatcher aborts.
func submitAll(ctx context.Context, flags *Flags, stmts []string, escape bool) (BatchResult, error) {
	var fc failureCollector

	d, err := flags.OpenDispatcher(ctx, dispatch.WithFailureHandler(fc.handle))
	if err != nil {
		return BatchResult{}, err
	}

	var inline int64 // statements run synchronously because the pool is empty
	for _, stmt := range stmts {
		err := d.ExecAsync(ctx, stmt, escape)
		switch {
		case errors.Is(err, dispatch.ErrClosed):
			_ = d.Close()
			return BatchResult{}, fmt.Errorf("submit %q: %w", stmt, err)
		case err != nil:
			fc.handle(dispatch.Failure{Statement: stmt, Err: err})
		case d.Workers() == 0:
			inline++
		}
	}

	if err := d.Close(); err != nil {
		return BatchResult{}, fmt.Errorf("close dispatcher: %w", err)
	}

	res := newBatchResult(len(stmts), d.Stats(), fc.list())
	res.Executed += inline
	return res, nil
}
