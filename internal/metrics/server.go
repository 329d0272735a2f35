// Package metrics exposes a run's live state as Prometheus metrics and
// a health endpoint for the engine's own process, separate from
// internal/backpressure's scrape provider, which reads a remote
// origin's metrics rather than publishing vajrapulse's own.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides HTTP endpoints for Prometheus metrics, liveness, and
// run identity, for a single vajrapulse run.
type Server struct {
	addr   string
	server *http.Server
	logger *slog.Logger

	ready     atomic.Bool
	runID     string
	taskID    string
	startedAt time.Time
}

// NewServer creates a new metrics server bound to addr. It does not start
// listening until Start is called.
func NewServer(addr string, logger *slog.Logger) *Server {
	s := &Server{addr: addr, logger: logger}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/readyz", s.readyHandler)
	mux.HandleFunc("/runinfo", s.runInfoHandler)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	return s
}

// SetRunInfo records the run identity /runinfo reports. Called once the
// run's RunID and task identifier are resolved, before Start.
func (s *Server) SetRunInfo(runID, taskID string) {
	s.runID = runID
	s.taskID = taskID
	s.startedAt = time.Now()
}

// SetReady flips whether /readyz reports this run as accepting load. A
// run is alive (healthz ok) from process start, but not ready until
// preflight has passed and the Execution Engine is about to dispatch its
// first iteration — scrapers that gate traffic on readiness shouldn't
// treat the window between process start and first dispatch as healthy
// capacity.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// healthHandler reports process liveness: it always succeeds once the
// server is serving, regardless of run phase.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// readyHandler reports whether the run is currently dispatching load, as
// set by SetReady.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ready")
}

// runInfoHandler reports the run's identity and readiness as JSON, for
// operators correlating a metrics scrape with a specific run without
// cross-referencing log output.
func (s *Server) runInfoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		RunID     string `json:"run_id"`
		TaskID    string `json:"task_id"`
		Ready     bool   `json:"ready"`
		StartedAt string `json:"started_at,omitempty"`
	}{
		RunID:  s.runID,
		TaskID: s.taskID,
		Ready:  s.ready.Load(),
		StartedAt: func() string {
			if s.startedAt.IsZero() {
				return ""
			}
			return s.startedAt.UTC().Format(time.RFC3339)
		}(),
	})
}

// Start starts the metrics server in a goroutine. Returns immediately;
// use Shutdown to stop.
func (s *Server) Start() error {
	s.logger.Info("metrics_server_starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics_server_error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("metrics_server_shutting_down")
	s.SetReady(false)
	return s.server.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.addr
}
