package logging

import "context"

type contextKey string

const (
	dispatcherIDKey contextKey = "dispatcher_id"
	workerIDKey     contextKey = "worker_id"
)

// WithDispatcherID adds a dispatcher ID to the context.
func WithDispatcherID(ctx context.Context, dispatcherID string) context.Context {
	return context.WithValue(ctx, dispatcherIDKey, dispatcherID)
}

// WithWorkerID adds a worker ID to the context.
func WithWorkerID(ctx context.Context, workerID int) context.Context {
	return context.WithValue(ctx, workerIDKey, workerID)
}

// GetDispatcherID retrieves the dispatcher ID from the context.
// Returns empty string if not present.
func GetDispatcherID(ctx context.Context) string {
	if id, ok := ctx.Value(dispatcherIDKey).(string); ok {
		return id
	}
	return ""
}

// GetWorkerID retrieves the worker ID from the context.
// Returns 0 and false if not present.
func GetWorkerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerIDKey).(int)
	return id, ok
}
