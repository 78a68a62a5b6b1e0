package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/dbpool/internal/core/logging"
)

// Item is one unit of asynchronous work. When Escape is set the worker
// escapes Statement with its own handle before executing it.
type Item struct {
	Statement string
	Escape    bool
}

// Worker owns one Handle, a pending buffer and the goroutine that drains it.
type Worker struct {
	id     int
	handle Handle
	opts   options
	log    zerolog.Logger

	mu      sync.Mutex
	pending []Item
	state   State
	closed  bool
	stop    chan struct{} // closed by Stop
	done    chan struct{} // closed when the loop exits

	cycles   atomic.Int64
	executed atomic.Int64
	failed   atomic.Int64
}

// NewWorker connects a private handle for a worker. The worker starts in
// StateStopped; call Start to launch its loop.
func NewWorker(ctx context.Context, id int, connect ConnectFunc, opts ...Option) (*Worker, error) {
	h, err := connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", id, err)
	}
	return newWorker(id, h, newOptions(opts)), nil
}

func newWorker(id int, h Handle, o options) *Worker {
	return &Worker{
		id:     id,
		handle: h,
		opts:   o,
		log:    logging.Worker(o.logger, id),
	}
}

// ID returns the worker's identifier within its dispatcher.
func (w *Worker) ID() int {
	return w.id
}

// Start launches the execution loop. It fails with ErrWorkerRunning unless
// the worker is stopped, which also covers a worker that was stopped but not
// yet joined.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.state != StateStopped {
		return ErrWorkerRunning
	}

	w.state = StateRunning
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	go w.run(w.stop, w.done)
	return nil
}

// Enqueue appends item to the pending buffer. It never blocks on I/O.
// Items offered to a worker that is not running are rejected with
// ErrWorkerStopped.
func (w *Worker) Enqueue(item Item) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateRunning {
		return ErrWorkerStopped
	}
	w.pending = append(w.pending, item)
	return nil
}

// PendingCount returns the number of items waiting for the next cycle. The
// value may be stale by the time the caller acts on it.
func (w *Worker) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stop asks the loop to exit. A cycle already in progress runs to completion
// and items accepted before Stop are drained once more before the loop exits.
// Stop is a no-op unless the worker is running.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateRunning {
		return
	}
	w.state = StateDraining
	close(w.stop)
}

// Join blocks until the loop has exited. It returns immediately for a worker
// that was never started. Join without Stop blocks until someone calls Stop.
func (w *Worker) Join() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	if done == nil {
		return
	}
	<-done
}

// Close releases the worker's handle. The worker must be stopped and joined.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateStopped {
		return ErrWorkerRunning
	}
	if w.closed {
		return nil
	}
	w.closed = true
	w.pending = nil

	if err := w.handle.Close(); err != nil {
		return fmt.Errorf("worker %d: close handle: %w", w.id, err)
	}
	return nil
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	pending := len(w.pending)
	state := w.state
	w.mu.Unlock()

	return WorkerStats{
		ID:       w.id,
		State:    state.String(),
		Pending:  pending,
		Cycles:   w.cycles.Load(),
		Executed: w.executed.Load(),
		Failed:   w.failed.Load(),
	}
}

func (w *Worker) run(stop, done chan struct{}) {
	defer close(done)

	ctx := logging.WithWorkerID(context.Background(), w.id)
	if w.opts.dispatcherID != "" {
		ctx = logging.WithDispatcherID(ctx, w.opts.dispatcherID)
	}

	w.log.Debug().Ctx(ctx).Dur("interval", w.opts.interval).Msg("worker started")

	timer := time.NewTimer(w.opts.interval)
	defer timer.Stop()

	for {
		w.cycle(ctx)

		timer.Reset(w.opts.interval)
		select {
		case <-stop:
			// Items accepted before Stop still get one pass.
			w.cycle(ctx)

			w.mu.Lock()
			w.state = StateStopped
			w.mu.Unlock()

			w.log.Debug().Ctx(ctx).Int64("executed", w.executed.Load()).Msg("worker stopped")
			return
		case <-timer.C:
		}
	}
}

// take swaps the pending buffer for an empty one and returns the old one.
func (w *Worker) take() []Item {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()
	return batch
}

func (w *Worker) cycle(ctx context.Context) {
	batch := w.take()
	w.cycles.Add(1)

	for _, item := range batch {
		w.execute(ctx, item)
	}
}

// execute runs one item. A failure or panic is recorded and swallowed so the
// rest of the batch still runs.
func (w *Worker) execute(ctx context.Context, item Item) {
	defer func() {
		if r := recover(); r != nil {
			w.fail(ctx, item, fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	stmt := item.Statement
	if item.Escape {
		escaped, err := w.handle.Escape(stmt)
		if err != nil {
			w.fail(ctx, item, err)
			return
		}
		stmt = escaped
	}

	if err := w.handle.Exec(ctx, stmt); err != nil {
		w.fail(ctx, item, err)
		return
	}
	w.executed.Add(1)
}

func (w *Worker) fail(ctx context.Context, item Item, err error) {
	w.failed.Add(1)

	w.log.Error().Ctx(ctx).
		Err(err).
		Str("statement", item.Statement).
		Msg("asynchronous statement failed")

	w.opts.hint.Do(func() {
		w.log.Warn().Ctx(ctx).Msg("asynchronous errors cannot be handled by the caller; use ExecDirect to observe failures")
	})

	if w.opts.onFailure == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Ctx(ctx).Interface("panic", r).Msg("failure handler panicked")
		}
	}()
	w.opts.onFailure(Failure{WorkerID: w.id, Statement: item.Statement, Err: err})
}
