// Package dbtest provides an in-memory stand-in for db.Handle that records
// every statement it receives.
package dbtest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/colonyops/dbpool/internal/data/db"
)

// Call captures a statement that reached a handle.
type Call struct {
	Handle    int
	Kind      string // "exec" or "query"
	Statement string
}

// Recorder hands out recording handles and collects their calls. Configure
// Errors, Rows and Delay before connecting; they are read without locking.
type Recorder struct {
	mu         sync.Mutex
	calls      []Call
	opened     int
	closed     int
	violations int

	// Errors maps a statement to the error its execution returns.
	Errors map[string]error

	// Panics lists statements whose execution panics.
	Panics map[string]bool

	// Rows maps a statement to the rows QueryRows returns.
	Rows map[string][]string

	// Delay is slept inside every Exec and QueryRows call.
	Delay time.Duration

	// ConnectErr, when set, fails every Connect after the first FailAfter
	// successful ones.
	ConnectErr error
	FailAfter  int
}

// Connect opens a new recording handle.
func (r *Recorder) Connect(ctx context.Context) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ConnectErr != nil && r.opened >= r.FailAfter {
		return nil, &db.ConnectionError{Driver: "dbtest", Err: r.ConnectErr}
	}

	r.opened++
	return &Handle{id: r.opened, rec: r}, nil
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Statements returns the recorded statement text of every call.
func (r *Recorder) Statements() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Statement
	}
	return out
}

// Count returns how many times stmt was received.
func (r *Recorder) Count(stmt string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Statement == stmt {
			n++
		}
	}
	return n
}

// Len returns the number of recorded calls.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Opened returns the number of handles connected so far.
func (r *Recorder) Opened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened
}

// Closed returns the number of handles closed so far.
func (r *Recorder) Closed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Violations returns how many times a handle was entered while another call
// on the same handle was still running.
func (r *Recorder) Violations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.violations
}

// Reset clears recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Handle is a recording connection.
type Handle struct {
	id     int
	rec    *Recorder
	active atomic.Int32
	closed atomic.Bool
}

// ID returns the handle's connection number, starting at 1.
func (h *Handle) ID() int { return h.id }

// Escape doubles single quotes.
func (h *Handle) Escape(s string) (string, error) {
	if h.closed.Load() {
		return "", &db.EscapeError{Err: db.ErrClosed}
	}
	return strings.ReplaceAll(s, "'", "''"), nil
}

// Exec records stmt and returns the configured error for it.
func (h *Handle) Exec(ctx context.Context, stmt string) error {
	_, err := h.call("exec", stmt)
	return err
}

// QueryRows records stmt and returns the configured rows for it.
func (h *Handle) QueryRows(ctx context.Context, stmt string) ([]string, error) {
	return h.call("query", stmt)
}

// Close marks the handle closed.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.rec.mu.Lock()
	h.rec.closed++
	h.rec.mu.Unlock()
	return nil
}

func (h *Handle) call(kind, stmt string) ([]string, error) {
	if h.closed.Load() {
		return nil, &db.QueryError{Statement: stmt, Err: db.ErrClosed}
	}

	if h.active.Add(1) > 1 {
		h.rec.mu.Lock()
		h.rec.violations++
		h.rec.mu.Unlock()
	}
	defer h.active.Add(-1)

	if h.rec.Delay > 0 {
		time.Sleep(h.rec.Delay)
	}

	h.rec.record(Call{Handle: h.id, Kind: kind, Statement: stmt})

	if h.rec.Panics[stmt] {
		panic("dbtest: panic executing " + stmt)
	}

	if err := h.rec.Errors[stmt]; err != nil {
		return nil, &db.QueryError{Statement: stmt, Err: err}
	}

	rows := h.rec.Rows[stmt]
	if rows == nil {
		rows = []string{}
	}
	return rows, nil
}

// ErrBackend is a convenience error for configuring failures.
var ErrBackend = errors.New("dbtest: backend failure")
