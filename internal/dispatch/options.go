package dispatch

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/colonyops/dbpool/internal/core/logging"
)

// DefaultInterval is the pause between two worker cycles.
const DefaultInterval = 50 * time.Millisecond

// Option configures a Dispatcher or a Worker.
type Option func(*options)

type options struct {
	workers      int
	interval     time.Duration
	logger       zerolog.Logger
	onFailure    func(Failure)
	dispatcherID string

	// hint limits how often the "asynchronous errors cannot be handled"
	// reminder is logged. Shared by every worker built from these options.
	hint *rate.Sometimes
}

func newOptions(opts []Option) options {
	o := options{
		workers:  1,
		interval: DefaultInterval,
		logger:   logging.Component("dispatch"),
		hint:     &rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithWorkers sets the number of background workers. Zero disables the pool
// and makes ExecAsync synchronous.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithInterval sets the pause between worker cycles. Non-positive values are
// ignored.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger sets the logger used for lifecycle and failure events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFailureHandler registers fn to receive every asynchronous failure.
// fn runs on the worker goroutine and must not block for long.
func WithFailureHandler(fn func(Failure)) Option {
	return func(o *options) {
		o.onFailure = fn
	}
}
