// Package profiler serves pprof and live dispatcher counters over HTTP.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/dbpool/internal/dispatch"
	"github.com/colonyops/dbpool/pkg/iojson"
)

// StatsSource reports worker counters. *dispatch.Dispatcher satisfies it.
type StatsSource interface {
	ID() string
	Pending() int
	Stats() []dispatch.WorkerStats
}

// Snapshot is the body served at /debug/dispatch.
type Snapshot struct {
	DispatcherID string                 `json:"dispatcher_id"`
	Pending      int                    `json:"pending"`
	Workers      []dispatch.WorkerStats `json:"workers"`
}

type Server struct {
	httpServer *http.Server
	listener   net.Listener
	port       int

	mu     sync.Mutex
	source StatsSource
}

func New(port int) *Server {
	s := &Server{port: port}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/dispatch", s.handleDispatch)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Attach sets the dispatcher whose counters /debug/dispatch reports.
func (s *Server) Attach(src StatsSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()

	if src == nil {
		http.Error(w, "no dispatcher attached", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = iojson.WriteWith(w, w, Snapshot{
		DispatcherID: src.ID(),
		Pending:      src.Pending(),
		Workers:      src.Stats(),
	})
}

func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	log.Info().Str("addr", listener.Addr().String()).Msg("starting profiler server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("profiler server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down profiler server")
	return s.httpServer.Shutdown(ctx)
}
