package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/agmet-derive/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunStatusSource reports the state of the current or most recent run.
type RunStatusSource interface {
	Status() pipeline.RunStatus
}

// Server exposes liveness, run status and the run's metrics registry while
// derive is working.
type Server struct {
	httpServer *http.Server
	runs       RunStatusSource
	logger     *slog.Logger
}

// runResponse is the /readyz body. Ready means the last run succeeded.
type runResponse struct {
	Status     string   `json:"status"`
	State      string   `json:"state"`
	RunID      string   `json:"run_id,omitempty"`
	Phase      string   `json:"phase,omitempty"`
	Completed  []string `json:"completed_phases,omitempty"`
	StartedAt  string   `json:"started_at,omitempty"`
	FinishedAt string   `json:"finished_at,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// NewServer routes /healthz, /readyz and /metrics. Metrics come from gatherer
// so only the run's own collectors are exposed.
func NewServer(addr string, runs RunStatusSource, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	s := &Server{runs: runs, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start listens until Shutdown, which makes it return http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains open connections before ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP lets tests drive the routes without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	run := s.runs.Status()
	resp := runResponse{
		Status:     "not ready",
		State:      run.State,
		RunID:      run.RunID,
		Phase:      run.Phase,
		Completed:  run.Completed,
		StartedAt:  timestamp(run.StartedAt),
		FinishedAt: timestamp(run.FinishedAt),
	}
	if run.Err != nil {
		resp.Error = run.Err.Error()
	}

	code := http.StatusServiceUnavailable
	if run.State == pipeline.StateSucceeded {
		resp.Status = "ready"
		code = http.StatusOK
	}
	writeJSON(w, code, resp)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
