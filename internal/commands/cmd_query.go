package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

type QueryCmd struct {
	flags  *Flags
	escape bool
	format string
}

// NewQueryCmd creates a new query command
func NewQueryCmd(flags *Flags) *QueryCmd {
	return &QueryCmd{flags: flags}
}

// Register adds the query command to the application
func (cmd *QueryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "query",
		Usage:     "Run a statement and print the first column of each row",
		UsageText: "dbpool query [--format json] <statement>",
		Description: `Runs the statement on the dispatcher's own connection and prints the row
count followed by the first column of every row. NULL values print as empty
lines.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "escape",
				Usage:       "escape the statement text before executing",
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

func (cmd *QueryCmd) run(ctx context.Context, c *cli.Command) error {
	if err := validFormat(cmd.format); err != nil {
		return err
	}

	stmt := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if stmt == "" {
		return fmt.Errorf("statement is required")
	}

	d, err := cmd.flags.OpenDispatcher(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	rows, err := d.Query(ctx, stmt, cmd.escape)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	return writeRows(c.Root().Writer, cmd.format, QueryResult{
		Statement: stmt,
		Count:     len(rows),
		Rows:      rows,
	})
}
