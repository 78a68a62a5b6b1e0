package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/dbpool/internal/core/styles"
	"github.com/colonyops/dbpool/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "dbpool config validate [options]",
				Description: "Validates the merged configuration and checks that referenced paths exist.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       formatText,
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

// FieldIssue is one invalid configuration field.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validateOutput struct {
	Valid  bool         `json:"valid"`
	Errors []FieldIssue `json:"errors,omitempty"`
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	if err := validFormat(cmd.format); err != nil {
		return err
	}

	issues := fieldIssues(cmd.flags.Config.ValidateDeep(cmd.flags.ConfigPath))
	out := validateOutput{Valid: len(issues) == 0, Errors: issues}

	w := c.Root().Writer
	if cmd.format == formatJSON {
		if err := iojson.WriteWith(w, w, out); err != nil {
			return err
		}
	} else if err := writeIssues(w, out); err != nil {
		return err
	}

	if !out.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func writeIssues(w io.Writer, out validateOutput) error {
	for _, issue := range out.Errors {
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", styles.Fail.Render("✗"), issue.Field, issue.Message)
	}

	if out.Valid {
		_, err := fmt.Fprintln(w, styles.Status(true, "Configuration is valid"))
		return err
	}

	_, err := fmt.Fprintln(w, styles.Status(false, fmt.Sprintf("%d error(s) found", len(out.Errors))))
	return err
}

// fieldIssues flattens a validation error into per-field issues.
func fieldIssues(err error) []FieldIssue {
	if err == nil {
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		issues := make([]FieldIssue, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			issues = append(issues, FieldIssue{Field: fe.Field, Message: fe.Err.Error()})
		}
		return issues
	}

	return []FieldIssue{{Field: "config", Message: err.Error()}}
}
