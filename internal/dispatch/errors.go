package dispatch

import "errors"

var (
	// ErrClosed is returned by every Dispatcher entry point after Close.
	ErrClosed = errors.New("dispatch: dispatcher is closed")

	// ErrWorkerRunning is returned by Start on a worker that has not been
	// stopped and joined, and by Close on a worker that is still running.
	ErrWorkerRunning = errors.New("dispatch: worker is running")

	// ErrWorkerStopped is returned by Enqueue when the worker is not running.
	ErrWorkerStopped = errors.New("dispatch: worker is not running")

	// ErrInvalidWorkers is returned by New for a negative worker count.
	ErrInvalidWorkers = errors.New("dispatch: worker count must not be negative")

	// ErrPanic wraps a value recovered while executing an item.
	ErrPanic = errors.New("dispatch: statement panicked")
)
