package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts dispatcher_id and worker_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if dispatcherID := GetDispatcherID(ctx); dispatcherID != "" {
		e.Str("dispatcher_id", dispatcherID)
	}

	if workerID, ok := GetWorkerID(ctx); ok {
		e.Int("worker_id", workerID)
	}
}
