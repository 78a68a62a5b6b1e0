package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/dbpool/internal/core/styles"
)

type ExecCmd struct {
	flags  *Flags
	escape bool
}

// NewExecCmd creates a new exec command
func NewExecCmd(flags *Flags) *ExecCmd {
	return &ExecCmd{flags: flags}
}

// Register adds the exec command to the application
func (cmd *ExecCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "exec",
		Usage:     "Run a statement and wait for it to finish",
		UsageText: "dbpool exec [--escape] <statement>",
		Description: `Runs the statement on the dispatcher's own connection and reports the
result. Any rows the statement returns are discarded.

With --escape the statement text is passed through the driver's string
escape before it is sent.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "escape",
				Usage:       "escape the statement text before executing",
				Destination: &cmd.escape,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ExecCmd) run(ctx context.Context, c *cli.Command) error {
	stmt := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if stmt == "" {
		return fmt.Errorf("statement is required")
	}

	d, err := cmd.flags.OpenDispatcher(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	if err := d.ExecDirect(ctx, stmt, cmd.escape); err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	_, err = fmt.Fprintln(c.Root().Writer, styles.Status(true, "ok"))
	return err
}
