package http_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/agmet-derive/internal/adapter/http"
	"github.com/couchcryptid/agmet-derive/internal/observability"
	"github.com/couchcryptid/agmet-derive/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStatus pipeline.RunStatus

func (f fixedStatus) Status() pipeline.RunStatus { return pipeline.RunStatus(f) }

func newTestServer(status pipeline.RunStatus) (*httpadapter.Server, *observability.Metrics) {
	metrics := observability.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", fixedStatus(status), metrics.Registry, logger), metrics
}

func get(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

type readyBody struct {
	Status     string   `json:"status"`
	State      string   `json:"state"`
	RunID      string   `json:"run_id"`
	Phase      string   `json:"phase"`
	Completed  []string `json:"completed_phases"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at"`
	Error      string   `json:"error"`
}

func decodeReady(t *testing.T, rec *httptest.ResponseRecorder) readyBody {
	t.Helper()
	var body readyBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(pipeline.RunStatus{State: pipeline.StateRunning})
	rec := get(t, srv, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	started := time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status pipeline.RunStatus
		code   int
		want   readyBody
	}{
		{
			name:   "idle",
			status: pipeline.RunStatus{State: pipeline.StateIdle},
			code:   http.StatusServiceUnavailable,
			want:   readyBody{Status: "not ready", State: "idle"},
		},
		{
			name: "running reports phase",
			status: pipeline.RunStatus{
				RunID:     "run-1",
				State:     pipeline.StateRunning,
				Phase:     pipeline.PhaseDailyScan,
				Completed: []string{pipeline.PhaseHourlyScan, pipeline.PhaseHourlyReconcile},
				StartedAt: started,
			},
			code: http.StatusServiceUnavailable,
			want: readyBody{
				Status:    "not ready",
				State:     "running",
				RunID:     "run-1",
				Phase:     "daily_scan",
				Completed: []string{"hourly_scan", "hourly_reconcile"},
				StartedAt: "2024-06-01T06:00:00Z",
			},
		},
		{
			name: "failed carries error",
			status: pipeline.RunStatus{
				RunID:      "run-2",
				State:      pipeline.StateFailed,
				Phase:      pipeline.PhaseHourlyScan,
				StartedAt:  started,
				FinishedAt: started.Add(time.Second),
				Err:        errors.New("hourly_scan: malformed numeric value"),
			},
			code: http.StatusServiceUnavailable,
			want: readyBody{
				Status:     "not ready",
				State:      "failed",
				RunID:      "run-2",
				Phase:      "hourly_scan",
				StartedAt:  "2024-06-01T06:00:00Z",
				FinishedAt: "2024-06-01T06:00:01Z",
				Error:      "hourly_scan: malformed numeric value",
			},
		},
		{
			name: "succeeded",
			status: pipeline.RunStatus{
				RunID:      "run-3",
				State:      pipeline.StateSucceeded,
				Phase:      pipeline.PhaseDailyReconcile,
				StartedAt:  started,
				FinishedAt: started.Add(2 * time.Second),
			},
			code: http.StatusOK,
			want: readyBody{
				Status:     "ready",
				State:      "succeeded",
				RunID:      "run-3",
				Phase:      "daily_reconcile",
				StartedAt:  "2024-06-01T06:00:00Z",
				FinishedAt: "2024-06-01T06:00:02Z",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(tt.status)
			rec := get(t, srv, "/readyz")

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.want, decodeReady(t, rec))
		})
	}
}

func TestReadyzFollowsPipeline(t *testing.T) {
	metrics := observability.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(pipeline.FileStore{}, nil, logger, metrics, nil)
	srv := httpadapter.NewServer(":0", p, metrics.Registry, logger)

	rec := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, pipeline.StateIdle, decodeReady(t, rec).State)
}

func TestMetricsEndpointServesRunRegistry(t *testing.T) {
	srv, metrics := newTestServer(pipeline.RunStatus{State: pipeline.StateSucceeded})
	metrics.RowsRead.WithLabelValues("hourly_obs").Add(24)

	rec := get(t, srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `agmet_derive_rows_read_total{table="hourly_obs"} 24`)
	assert.NotContains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownMethodRejected(t *testing.T) {
	srv, _ := newTestServer(pipeline.RunStatus{State: pipeline.StateSucceeded})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/readyz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
