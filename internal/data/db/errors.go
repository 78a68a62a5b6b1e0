package db

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrClosed is returned by operations on a handle after Close.
var ErrClosed = errors.New("db: handle is closed")

// ConnectionError reports a failure to establish a handle.
type ConnectionError struct {
	Driver string
	Host   string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("connect %s: %v", e.Driver, e.Err)
	}
	return fmt.Sprintf("connect %s at %s: %v", e.Driver, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a failed statement. Statement holds the text that was
// sent to the backend.
type QueryError struct {
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Statement, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// EscapeError reports a failure to escape statement text.
type EscapeError struct {
	Err error
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("escape: %v", e.Err)
}

func (e *EscapeError) Unwrap() error { return e.Err }

// IsBusyError returns true if the error is a SQLITE_BUSY error.
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_BUSY
	}
	return false
}
