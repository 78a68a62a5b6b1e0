// Package db provides Handle, a single exclusively-owned database connection
// with escape, exec and first-column query operations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"
)

// Handle owns exactly one live connection. Exec and QueryRows must not be
// called concurrently; Escape may be called from any goroutine.
type Handle struct {
	driver Driver
	host   string
	pool   *sql.DB
	conn   *sql.Conn
	closed atomic.Bool
}

// Open connects with p and pins a single connection for the lifetime of the
// handle. Every failure is returned as a *ConnectionError and leaves nothing
// open.
func Open(ctx context.Context, p Params) (*Handle, error) {
	host := p.Host
	if p.Driver == DriverSQLite {
		host = p.Database
	}
	connErr := func(err error) error {
		return &ConnectionError{Driver: string(p.Driver), Host: host, Err: err}
	}

	pool, err := p.openPool()
	if err != nil {
		return nil, connErr(err)
	}

	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)
	pool.SetConnMaxLifetime(0) // Connections live forever

	if err := pingWithRetry(ctx, pool, p.retries()); err != nil {
		_ = pool.Close()
		return nil, connErr(err)
	}

	conn, err := pool.Conn(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, connErr(err)
	}

	return &Handle{
		driver: p.Driver,
		host:   host,
		pool:   pool,
		conn:   conn,
	}, nil
}

// Driver reports the backend this handle talks to.
func (h *Handle) Driver() Driver {
	return h.driver
}

// Escape returns s escaped for inclusion in a string literal of the
// handle's dialect.
func (h *Handle) Escape(s string) (string, error) {
	if h.closed.Load() {
		return "", &EscapeError{Err: ErrClosed}
	}

	out, err := escape(h.driver, s)
	if err != nil {
		return "", &EscapeError{Err: err}
	}
	return out, nil
}

// Exec runs stmt and discards every result set it produces. The result sets
// are read to completion so a row-returning statement cannot leave the
// connection mid-stream for the next call.
func (h *Handle) Exec(ctx context.Context, stmt string) error {
	if h.closed.Load() {
		return &QueryError{Statement: stmt, Err: ErrClosed}
	}

	rows, err := h.conn.QueryContext(ctx, stmt)
	if err != nil {
		return &QueryError{Statement: stmt, Err: err}
	}

	if err := drain(rows); err != nil {
		return &QueryError{Statement: stmt, Err: err}
	}
	return nil
}

// QueryRows runs stmt and returns the first column of every row as text, in
// row order. SQL NULL is returned as the empty string.
func (h *Handle) QueryRows(ctx context.Context, stmt string) ([]string, error) {
	if h.closed.Load() {
		return nil, &QueryError{Statement: stmt, Err: ErrClosed}
	}

	rows, err := h.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, &QueryError{Statement: stmt, Err: err}
	}

	result, err := firstColumn(rows)
	if err != nil {
		_ = rows.Close()
		return nil, &QueryError{Statement: stmt, Err: err}
	}

	if err := drain(rows); err != nil {
		return nil, &QueryError{Statement: stmt, Err: err}
	}
	return result, nil
}

// Close releases the pinned connection and the underlying pool. Calling Close
// more than once is a no-op.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	connErr := h.conn.Close()
	if err := h.pool.Close(); err != nil {
		return fmt.Errorf("close pool: %w", err)
	}
	if connErr != nil {
		return fmt.Errorf("close connection: %w", connErr)
	}
	return nil
}

func firstColumn(rows *sql.Rows) ([]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]string, 0)
	if len(cols) == 0 {
		return result, nil
	}

	var first sql.NullString
	dest := make([]any, len(cols))
	dest[0] = &first
	for i := 1; i < len(cols); i++ {
		dest[i] = new(sql.RawBytes)
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, first.String)
	}

	return result, rows.Err()
}

// drain consumes whatever is left of every result set and closes rows.
func drain(rows *sql.Rows) error {
	for {
		for rows.Next() {
		}
		if !rows.NextResultSet() {
			break
		}
	}

	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

// pingWithRetry attempts to ping the database with exponential backoff.
func pingWithRetry(ctx context.Context, pool *sql.DB, retries int) error {
	var lastErr error
	wait := initialWait
	for i := 0; i < retries; i++ {
		if lastErr = pool.PingContext(ctx); lastErr == nil {
			return nil
		}

		if i < retries-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("ping cancelled: %w", ctx.Err())
			case <-time.After(wait):
			}
			wait *= 2
		}
	}

	return fmt.Errorf("ping failed after %d retries: %w", retries, lastErr)
}
