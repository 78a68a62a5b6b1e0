package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/dbpool/internal/core/config"
)

type registerer interface {
	Register(app *cli.Command) *cli.Command
}

func newTestFlags(t *testing.T, workers int) *Flags {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "test.db")
	cfg.Pool.Interval = 2 * time.Millisecond
	cfg.SetWorkers(workers)

	return &Flags{Config: &cfg, Workers: -1}
}

// runApp runs args against a root command holding only cmds and returns
// everything written to the root writer.
func runApp(t *testing.T, args []string, cmds ...registerer) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := &cli.Command{
		Name:      "dbpool",
		Writer:    &out,
		ErrWriter: &out,
		// keep cli.Exit from terminating the test binary
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	for _, c := range cmds {
		app = c.Register(app)
	}

	err := app.Run(context.Background(), append([]string{"dbpool"}, args...))
	return out.String(), err
}

func TestExecAndQuery(t *testing.T) {
	flags := newTestFlags(t, 1)
	cmds := []registerer{NewExecCmd(flags), NewQueryCmd(flags)}

	_, err := runApp(t, []string{"exec", "CREATE TABLE t (v TEXT)"}, cmds...)
	require.NoError(t, err)
	_, err = runApp(t, []string{"exec", "INSERT INTO t VALUES ('a'), ('b'), (NULL)"}, cmds...)
	require.NoError(t, err)

	out, err := runApp(t, []string{"query", "SELECT v FROM t ORDER BY rowid"}, cmds...)
	require.NoError(t, err)
	assert.Contains(t, out, "Amount of rows = 3")
	assert.Contains(t, out, "a\nb\n\n")

	out, err = runApp(t, []string{"query", "--format", "json", "SELECT v FROM t ORDER BY rowid"}, cmds...)
	require.NoError(t, err)

	var res QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, []string{"a", "b", ""}, res.Rows)
}

func TestExec_Errors(t *testing.T) {
	flags := newTestFlags(t, 1)

	_, err := runApp(t, []string{"exec"}, NewExecCmd(flags))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement is required")

	_, err = runApp(t, []string{"exec", "NOT SQL"}, NewExecCmd(flags))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exec:")
}

func TestQuery_UnknownFormat(t *testing.T) {
	flags := newTestFlags(t, 1)

	_, err := runApp(t, []string{"query", "--format", "yaml", "SELECT 1"}, NewQueryCmd(flags))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestAsync(t *testing.T) {
	tests := []struct {
		name    string
		workers int
	}{
		{name: "pool", workers: 3},
		{name: "no workers", workers: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newTestFlags(t, tt.workers)
			cmds := []registerer{NewExecCmd(flags), NewAsyncCmd(flags), NewQueryCmd(flags)}

			_, err := runApp(t, []string{"exec", "CREATE TABLE t (v INTEGER)"}, cmds...)
			require.NoError(t, err)

			out, err := runApp(t, []string{
				"async", "--format", "json",
				"INSERT INTO t VALUES (1)",
				"INSERT INTO missing VALUES (1)",
				"INSERT INTO t VALUES (2)",
			}, cmds...)
			require.NoError(t, err)

			var res BatchResult
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, 3, res.Submitted)
			assert.Equal(t, int64(2), res.Executed)
			assert.Equal(t, int64(1), res.Failed)
			require.Len(t, res.Failures, 1)
			assert.Equal(t, "INSERT INTO missing VALUES (1)", res.Failures[0].Statement)
			assert.Len(t, res.Workers, tt.workers)

			out, err = runApp(t, []string{"query", "SELECT count(*) FROM t"}, cmds...)
			require.NoError(t, err)
			assert.Contains(t, out, "Amount of rows = 1\n")
			assert.Contains(t, out, "\n2\n")
		})
	}
}

func TestBatch_Files(t *testing.T) {
	flags := newTestFlags(t, 2)

	dir := t.TempDir()
	schema := filepath.Join(dir, "00_schema.sql")
	seed := filepath.Join(dir, "01_seed.sql")
	require.NoError(t, os.WriteFile(schema, []byte("CREATE TABLE IF NOT EXISTS t (v INTEGER);\n"), 0o644))
	require.NoError(t, os.WriteFile(seed, []byte("-- rows\nINSERT INTO t VALUES (1);\nINSERT INTO t VALUES (2);\n"), 0o644))

	// The table must exist before workers run inserts in any order.
	_, err := runApp(t, []string{"batch", "-f", schema}, NewBatchCmd(flags))
	require.NoError(t, err)

	out, err := runApp(t, []string{"batch", "-f", seed}, NewBatchCmd(flags))
	require.NoError(t, err)
	assert.Contains(t, out, "2 submitted, 2 executed, 0 failed")
	assert.Contains(t, out, "WORKER")
}

func TestDemo(t *testing.T) {
	flags := newTestFlags(t, 1)

	out, err := runApp(t, []string{"demo", "--statement", "SELECT name FROM sqlite_master"}, NewDemoCmd(flags))
	require.NoError(t, err)
	assert.Contains(t, out, "Amount of rows = 0")
}

func TestConfigValidate(t *testing.T) {
	flags := newTestFlags(t, 1)

	out, err := runApp(t, []string{"config", "validate"}, NewConfigValidateCmd(flags))
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	flags.Config.Database.Driver = "oracle"
	flags.Config.Pool.Interval = 0

	out, err = runApp(t, []string{"config", "validate", "--format", "json"}, NewConfigValidateCmd(flags))
	require.Error(t, err)

	var res validateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)

	fields := make([]string, 0, len(res.Errors))
	for _, issue := range res.Errors {
		fields = append(fields, issue.Field)
	}
	assert.Contains(t, fields, "database.driver")
	assert.Contains(t, fields, "pool.interval")
}
