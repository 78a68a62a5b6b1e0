package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Dispatcher owns a fixed set of workers plus one handle for synchronous
// calls.
type Dispatcher struct {
	id      string
	opts    options
	log     zerolog.Logger
	workers []*Worker

	// mu serializes use of direct; the handle itself is not safe for
	// concurrent Exec or QueryRows.
	mu     sync.Mutex
	direct Handle
	closed atomic.Bool
}

// New connects the dispatcher's own handle, then connects and starts the
// configured number of workers. On any connection failure every handle
// opened so far is closed and the error is returned.
func New(ctx context.Context, connect ConnectFunc, opts ...Option) (*Dispatcher, error) {
	o := newOptions(opts)
	if o.workers < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, o.workers)
	}
	o.dispatcherID = uuid.NewString()

	direct, err := connect(ctx)
	if err != nil {
		return nil, err
	}

	handles := make([]Handle, o.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range handles {
		g.Go(func() error {
			h, err := connect(gctx)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i+1, err)
			}
			handles[i] = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, h := range handles {
			if h != nil {
				_ = h.Close()
			}
		}
		_ = direct.Close()
		return nil, err
	}

	d := &Dispatcher{
		id:      o.dispatcherID,
		opts:    o,
		log:     o.logger.With().Str("dispatcher_id", o.dispatcherID).Logger(),
		direct:  direct,
		workers: make([]*Worker, len(handles)),
	}

	for i, h := range handles {
		w := newWorker(i+1, h, o)
		_ = w.Start() // a fresh worker is always stopped
		d.workers[i] = w
	}

	d.log.Info().
		Int("workers", len(d.workers)).
		Dur("interval", o.interval).
		Msg("dispatcher started")

	return d, nil
}

// ID returns the dispatcher's random identifier.
func (d *Dispatcher) ID() string {
	return d.id
}

// Workers returns the size of the worker pool.
func (d *Dispatcher) Workers() int {
	return len(d.workers)
}

// ExecDirect runs stmt on the dispatcher's own handle and waits for it to
// finish. Any result set the statement produces is discarded.
func (d *Dispatcher) ExecDirect(ctx context.Context, stmt string, escape bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return ErrClosed
	}

	stmt, err := d.escape(stmt, escape)
	if err != nil {
		return err
	}

	d.log.Debug().Ctx(ctx).Str("statement", stmt).Msg("exec direct")
	return d.direct.Exec(ctx, stmt)
}

// ExecAsync hands stmt to the least-loaded worker and returns without
// waiting for it to run. Execution errors are never returned here; only
// submission errors are. With no workers the statement runs synchronously.
func (d *Dispatcher) ExecAsync(ctx context.Context, stmt string, escape bool) error {
	if d.closed.Load() {
		return ErrClosed
	}

	if len(d.workers) == 0 {
		return d.ExecDirect(ctx, stmt, escape)
	}

	stmt, err := d.escape(stmt, escape)
	if err != nil {
		return err
	}

	w := d.leastLoaded()
	if err := w.Enqueue(Item{Statement: stmt}); err != nil {
		if errors.Is(err, ErrWorkerStopped) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Query runs stmt on the dispatcher's own handle and returns the first
// column of every row.
func (d *Dispatcher) Query(ctx context.Context, stmt string, escape bool) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return nil, ErrClosed
	}

	stmt, err := d.escape(stmt, escape)
	if err != nil {
		return nil, err
	}

	d.log.Debug().Ctx(ctx).Str("statement", stmt).Msg("query")
	return d.direct.QueryRows(ctx, stmt)
}

// Pending returns the total number of items waiting across all workers.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, w := range d.workers {
		n += w.PendingCount()
	}
	return n
}

// Stats returns a snapshot of every worker's counters, ordered by worker ID.
func (d *Dispatcher) Stats() []WorkerStats {
	out := make([]WorkerStats, len(d.workers))
	for i, w := range d.workers {
		out[i] = w.Stats()
	}
	return out
}

// Close stops every worker, then joins every worker, then releases all
// handles. Stopping all workers before joining any keeps one slow worker
// from delaying the others. Calling Close again returns nil immediately.
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, w := range d.workers {
		w.Stop()
	}
	for _, w := range d.workers {
		w.Join()
	}

	var errs []error
	for _, w := range d.workers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	d.mu.Lock()
	if err := d.direct.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close direct handle: %w", err))
	}
	d.mu.Unlock()

	var executed, failed int64
	for _, s := range d.Stats() {
		executed += s.Executed
		failed += s.Failed
	}
	d.log.Info().
		Int64("executed", executed).
		Int64("failed", failed).
		Msg("dispatcher closed")

	return errors.Join(errs...)
}

// leastLoaded returns the worker with the fewest pending items. Ties go to
// the earliest worker.
func (d *Dispatcher) leastLoaded() *Worker {
	best := d.workers[0]
	bestCount := best.PendingCount()

	for _, w := range d.workers[1:] {
		if n := w.PendingCount(); n < bestCount {
			best, bestCount = w, n
		}
	}
	return best
}

func (d *Dispatcher) escape(stmt string, escape bool) (string, error) {
	if !escape {
		return stmt, nil
	}
	return d.direct.Escape(stmt)
}
