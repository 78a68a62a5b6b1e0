package dispatch

import "context"

// Handle is an exclusively owned database connection. Exec and QueryRows are
// never called concurrently on the same handle. Escape must be safe to call
// from any goroutine and must not perform I/O.
type Handle interface {
	Escape(s string) (string, error)
	Exec(ctx context.Context, stmt string) error
	QueryRows(ctx context.Context, stmt string) ([]string, error)
	Close() error
}

// ConnectFunc opens a new, independent Handle.
type ConnectFunc func(ctx context.Context) (Handle, error)

// Connector adapts a constructor that returns a concrete handle type into a
// ConnectFunc. A failed connect never yields a non-nil Handle.
func Connector[H Handle](open func(ctx context.Context) (H, error)) ConnectFunc {
	return func(ctx context.Context) (Handle, error) {
		h, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}
