package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/dbpool/internal/data/db"
)

func TestDispatcher_SQLite(t *testing.T) {
	ctx := context.Background()
	params := db.Params{
		Driver:   db.DriverSQLite,
		Database: filepath.Join(t.TempDir(), "dispatch.db"),
	}
	connect := Connector(func(ctx context.Context) (*db.Handle, error) {
		return db.Open(ctx, params)
	})

	d, err := New(ctx, connect, WithWorkers(3), WithInterval(fastInterval), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	require.NoError(t, d.ExecDirect(ctx, "CREATE TABLE events (name TEXT)", false))

	const n = 60
	for i := range n {
		require.NoError(t, d.ExecAsync(ctx, fmt.Sprintf("INSERT INTO events VALUES ('e%d')", i), false))
	}
	require.NoError(t, d.ExecAsync(ctx, "INSERT INTO missing VALUES (1)", false))

	require.NoError(t, d.Close())

	var executed, failed int64
	for _, s := range d.Stats() {
		executed += s.Executed
		failed += s.Failed
	}
	assert.Equal(t, int64(n), executed)
	assert.Equal(t, int64(1), failed)

	h, err := db.Open(ctx, params)
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	rows, err := h.QueryRows(ctx, "SELECT count(*) FROM events")
	require.NoError(t, err)
	assert.Equal(t, []string{fmt.Sprint(n)}, rows)
}

func TestDispatcher_SQLiteQueryAfterAsyncRows(t *testing.T) {
	ctx := context.Background()
	params := db.Params{
		Driver:   db.DriverSQLite,
		Database: filepath.Join(t.TempDir(), "rows.db"),
	}
	connect := Connector(func(ctx context.Context) (*db.Handle, error) {
		return db.Open(ctx, params)
	})

	d, err := New(ctx, connect, WithWorkers(0), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	require.NoError(t, d.ExecDirect(ctx, "CREATE TABLE t (v TEXT)", false))
	require.NoError(t, d.ExecAsync(ctx, "INSERT INTO t VALUES ('a'), ('b')", false))

	// Row-returning statements through the exec paths leave the handle clean.
	require.NoError(t, d.ExecDirect(ctx, "SELECT v FROM t", false))
	require.NoError(t, d.ExecAsync(ctx, "SELECT v FROM t", false))

	rows, err := d.Query(ctx, "SELECT v FROM t ORDER BY v", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows)
}
