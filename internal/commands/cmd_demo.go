package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type DemoCmd struct {
	flags     *Flags
	statement string
}

// NewDemoCmd creates a new demo command
func NewDemoCmd(flags *Flags) *DemoCmd {
	return &DemoCmd{flags: flags}
}

// Register adds the demo command to the application
func (cmd *DemoCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "demo",
		Usage:     "Exercise direct, asynchronous and query paths with one statement",
		UsageText: "dbpool demo [--statement <sql>]",
		Description: `Runs the statement three ways against the configured database: once
directly, once through the worker pool and once as a query whose rows are
printed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "statement",
				Usage:       "statement to run",
				Value:       "show tables",
				Destination: &cmd.statement,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *DemoCmd) run(ctx context.Context, c *cli.Command) error {
	d, err := cmd.flags.OpenDispatcher(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	if err := d.ExecDirect(ctx, cmd.statement, false); err != nil {
		return fmt.Errorf("exec direct: %w", err)
	}
	if err := d.ExecAsync(ctx, cmd.statement, false); err != nil {
		return fmt.Errorf("exec async: %w", err)
	}

	rows, err := d.Query(ctx, cmd.statement, false)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	return writeRows(c.Root().Writer, formatText, QueryResult{
		Statement: cmd.statement,
		Count:     len(rows),
		Rows:      rows,
	})
}
