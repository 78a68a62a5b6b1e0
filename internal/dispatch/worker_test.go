package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/dbpool/internal/data/db/dbtest"
)

const (
	fastInterval = 2 * time.Millisecond
	// idleInterval keeps a worker asleep after its first cycle so tests
	// control exactly when the next drain happens (on Stop).
	idleInterval = time.Hour
	waitFor      = 2 * time.Second
	tick         = time.Millisecond
)

func newTestWorker(t *testing.T, rec *dbtest.Recorder, opts ...Option) *Worker {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop()), WithInterval(fastInterval)}, opts...)

	w, err := NewWorker(context.Background(), 1, Connector(rec.Connect), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		w.Stop()
		w.Join()
		_ = w.Close()
	})
	return w
}

// startIdle starts w and waits for its initial cycle so that later items
// stay pending until Stop.
func startIdle(t *testing.T, w *Worker) {
	t.Helper()
	require.NoError(t, w.Start())
	require.Eventually(t, func() bool { return w.Stats().Cycles >= 1 }, waitFor, tick)
}

func TestNewWorker_ConnectError(t *testing.T) {
	rec := &dbtest.Recorder{ConnectErr: dbtest.ErrBackend}

	w, err := NewWorker(context.Background(), 7, Connector(rec.Connect))
	require.Error(t, err)
	assert.Nil(t, w)
	assert.ErrorIs(t, err, dbtest.ErrBackend)
	assert.Contains(t, err.Error(), "worker 7")
}

func TestWorker_StartTwice(t *testing.T) {
	w := newTestWorker(t, &dbtest.Recorder{})

	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrWorkerRunning)
	assert.Equal(t, StateRunning, w.State())
}

func TestWorker_EnqueueBeforeStart(t *testing.T) {
	w := newTestWorker(t, &dbtest.Recorder{})

	err := w.Enqueue(Item{Statement: "A"})
	assert.ErrorIs(t, err, ErrWorkerStopped)
	assert.Equal(t, 0, w.PendingCount())
}

func TestWorker_ExecutesEnqueued(t *testing.T) {
	rec := &dbtest.Recorder{}
	w := newTestWorker(t, rec)
	require.NoError(t, w.Start())

	require.NoError(t, w.Enqueue(Item{Statement: "A"}))
	require.NoError(t, w.Enqueue(Item{Statement: "B"}))

	require.Eventually(t, func() bool { return rec.Len() == 2 }, waitFor, tick)
	assert.ElementsMatch(t, []string{"A", "B"}, rec.Statements())
	assert.Equal(t, int64(2), w.Stats().Executed)
}

func TestWorker_DuplicatesAreIndependent(t *testing.T) {
	rec := &dbtest.Recorder{}
	w := newTestWorker(t, rec, WithInterval(idleInterval))
	startIdle(t, w)

	for range 3 {
		require.NoError(t, w.Enqueue(Item{Statement: "same"}))
	}
	assert.Equal(t, 3, w.PendingCount())

	w.Stop()
	w.Join()

	assert.Equal(t, 3, rec.Count("same"))
}

func TestWorker_FailureIsolation(t *testing.T) {
	rec := &dbtest.Recorder{
		Errors: map[string]error{"bad": dbtest.ErrBackend},
		Panics: map[string]bool{"boom": true},
	}

	var (
		mu       sync.Mutex
		failures []Failure
	)
	w := newTestWorker(t, rec,
		WithInterval(idleInterval),
		WithFailureHandler(func(f Failure) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, f)
		}),
	)
	startIdle(t, w)

	for _, stmt := range []string{"good-1", "bad", "boom", "good-2"} {
		require.NoError(t, w.Enqueue(Item{Statement: stmt}))
	}

	w.Stop()
	w.Join()

	assert.ElementsMatch(t, []string{"good-1", "bad", "boom", "good-2"}, rec.Statements())

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.Executed)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(4), stats.Attempted())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 2)

	byStmt := map[string]Failure{}
	for _, f := range failures {
		byStmt[f.Statement] = f
		assert.Equal(t, 1, f.WorkerID)
	}
	assert.ErrorIs(t, byStmt["bad"].Err, dbtest.ErrBackend)
	assert.ErrorIs(t, byStmt["boom"].Err, ErrPanic)
}

func TestWorker_FailureHandlerPanicIsContained(t *testing.T) {
	rec := &dbtest.Recorder{Errors: map[string]error{"bad": dbtest.ErrBackend}}
	w := newTestWorker(t, rec,
		WithInterval(idleInterval),
		WithFailureHandler(func(Failure) { panic("handler") }),
	)
	startIdle(t, w)

	require.NoError(t, w.Enqueue(Item{Statement: "bad"}))
	require.NoError(t, w.Enqueue(Item{Statement: "after"}))

	w.Stop()
	w.Join()

	assert.Equal(t, 1, rec.Count("after"))
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_EscapesItem(t *testing.T) {
	rec := &dbtest.Recorder{}
	w := newTestWorker(t, rec)
	require.NoError(t, w.Start())

	require.NoError(t, w.Enqueue(Item{Statement: "it's", Escape: true}))

	require.Eventually(t, func() bool { return rec.Len() == 1 }, waitFor, tick)
	assert.Equal(t, []string{"it''s"}, rec.Statements())
}

func TestWorker_CycleTakesWholeBuffer(t *testing.T) {
	rec := &dbtest.Recorder{}
	w := newTestWorker(t, rec, WithInterval(idleInterval))
	startIdle(t, w)

	for i := range 10 {
		require.NoError(t, w.Enqueue(Item{Statement: fmt.Sprintf("s%d", i)}))
	}
	assert.Equal(t, 10, w.PendingCount())

	batch := w.take()
	assert.Len(t, batch, 10)
	assert.Equal(t, 0, w.PendingCount())

	require.NoError(t, w.Enqueue(Item{Statement: "next"}))
	assert.Equal(t, 1, w.PendingCount())
	assert.Len(t, batch, 10, "taken batch is not shared with the new buffer")
}

func TestWorker_StopDrainsAcceptedItems(t *testing.T) {
	rec := &dbtest.Recorder{}
	w := newTestWorker(t, rec, WithInterval(idleInterval))
	startIdle(t, w)

	for i := range 100 {
		require.NoError(t, w.Enqueue(Item{Statement: fmt.Sprintf("s%d", i)}))
	}

	w.Stop()
	assert.ErrorIs(t, w.Enqueue(Item{Statement: "late"}), ErrWorkerStopped)
	w.Join()

	assert.Equal(t, 100, rec.Len())
	assert.Equal(t, 0, rec.Count("late"))
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_StopDoesNotInterruptCycle(t *testing.T) {
	rec := &dbtest.Recorder{Delay: 10 * time.Millisecond}
	w := newTestWorker(t, rec, WithInterval(idleInterval))
	startIdle(t, w)

	for i := range 5 {
		require.NoError(t, w.Enqueue(Item{Statement: fmt.Sprintf("s%d", i)}))
	}

	w.Stop()
	w.Join()

	assert.Equal(t, 5, rec.Len())
}

func TestWorker_StopJoinTwice(t *testing.T) {
	w := newTestWorker(t, &dbtest.Recorder{})
	require.NoError(t, w.Start())

	w.Stop()
	w.Join()

	done := make(chan struct{})
	go func() {
		w.Stop()
		w.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("second Stop/Join did not return")
	}
}

func TestWorker_JoinNeverStarted(t *testing.T) {
	w := newTestWorker(t, &dbtest.Recorder{})
	w.Join()
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_Restart(t *testing.T) {
	rec := &dbtest.Recorder{}
	w := newTestWorker(t, rec)

	require.NoError(t, w.Start())
	w.Stop()
	w.Join()

	require.NoError(t, w.Start())
	require.NoError(t, w.Enqueue(Item{Statement: "again"}))
	require.Eventually(t, func() bool { return rec.Count("again") == 1 }, waitFor, tick)
}

func TestWorker_Close(t *testing.T) {
	rec := &dbtest.Recorder{}
	w := newTestWorker(t, rec)
	require.NoError(t, w.Start())

	assert.ErrorIs(t, w.Close(), ErrWorkerRunning)

	w.Stop()
	w.Join()

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, rec.Closed())
	assert.ErrorIs(t, w.Start(), ErrClosed)
}
