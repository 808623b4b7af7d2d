package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/agmet-derive/internal/domain"
	"github.com/couchcryptid/agmet-derive/internal/observability"
	"github.com/couchcryptid/agmet-derive/internal/table"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TableReader streams the rows of one input table.
type TableReader interface {
	Name() string
	Schema() *table.Schema
	Next() (table.Row, error)
	Close() error
}

// TableWriter receives the rows of one output table. Nothing is visible at
// the destination until Commit.
type TableWriter interface {
	Write(row table.Row) error
	// Flush stages every written row without publishing it.
	Flush() error
	Commit() error
	// Revert withdraws a committed table.
	Revert() error
	Abort() error
}

// Store opens input tables and creates output tables.
type Store interface {
	Open(path string) (TableReader, error)
	Create(path string, columns []string) (TableWriter, error)
}

// SummaryPublisher sends updated daily summaries downstream.
type SummaryPublisher interface {
	PublishDaily(ctx context.Context, summaries []domain.DailySummary) error
}

// Phase names used in logs and metrics.
const (
	PhaseHourlyScan      = "hourly_scan"
	PhaseHourlyReconcile = "hourly_reconcile"
	PhaseDailyScan       = "daily_scan"
	PhaseDailyReconcile  = "daily_reconcile"
)

// Paths are the four input tables of a run.
type Paths struct {
	HourlyObs     string
	HourlyDerived string
	DailyObs      string
	DailyDerived  string
}

// Validate checks that all four paths are set.
func (p Paths) Validate() error {
	var errs []error
	for _, f := range []struct{ name, path string }{
		{"hourly observations", p.HourlyObs},
		{"hourly derived", p.HourlyDerived},
		{"daily observations", p.DailyObs},
		{"daily derived", p.DailyDerived},
	} {
		if f.path == "" {
			errs = append(errs, fmt.Errorf("%s path is required", f.name))
		}
	}
	return errors.Join(errs...)
}

// Report describes a completed run.
type Report struct {
	RunID        string
	HourlyOutput string
	DailyOutput  string
	StartedAt    time.Time
	FinishedAt   time.Time
	Phases       map[string]PhaseStats
	ZeroHourDays []domain.DayKey
	Published    int
}

// Pipeline runs the four phases over one set of input tables.
type Pipeline struct {
	store     Store
	publisher SummaryPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	mu     sync.Mutex
	status RunStatus
}

// Run states reported by Status.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// RunStatus is a snapshot of the current or most recent run.
type RunStatus struct {
	RunID      string
	State      string
	Phase      string // in progress, or the last one entered
	Completed  []string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

var (
	errNotStarted = errors.New("run not started")
	errRunning    = errors.New("run in progress")
)

// New creates a Pipeline. publisher may be nil to skip publication.
func New(store Store, publisher SummaryPublisher, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		status:    RunStatus{State: StateIdle},
	}
}

// Status returns the state of the current or most recent run.
func (p *Pipeline) Status() RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Completed = slices.Clone(s.Completed)
	return s
}

// CheckReadiness reports nil once a run has completed successfully, and the
// reason otherwise.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	s := p.Status()
	switch s.State {
	case StateSucceeded:
		return nil
	case StateRunning:
		if s.Phase == "" {
			return errRunning
		}
		return fmt.Errorf("%w: %s", errRunning, s.Phase)
	case StateFailed:
		return fmt.Errorf("last run failed: %w", s.Err)
	default:
		return errNotStarted
	}
}

func (p *Pipeline) updateStatus(fn func(*RunStatus)) {
	p.mu.Lock()
	fn(&p.status)
	p.mu.Unlock()
}

// Run executes the hourly scan, hourly reconciliation, daily scan and daily
// reconciliation in that order and commits both outputs only if all four
// succeed. Each phase consumes the previous phase's result.
func (p *Pipeline) Run(ctx context.Context, paths Paths) (Report, error) {
	p.updateStatus(func(s *RunStatus) {
		*s = RunStatus{State: StateRunning, StartedAt: p.clock.Now()}
	})
	report, err := p.run(ctx, paths)
	p.updateStatus(func(s *RunStatus) {
		s.RunID = report.RunID
		s.FinishedAt = p.clock.Now()
		s.Err = err
		s.State = StateSucceeded
		if err != nil {
			s.State = StateFailed
		}
	})
	return report, err
}

func (p *Pipeline) run(ctx context.Context, paths Paths) (Report, error) {
	report := Report{
		RunID:        uuid.NewString(),
		HourlyOutput: domain.UpdatedPath(paths.HourlyDerived),
		DailyOutput:  domain.UpdatedPath(paths.DailyDerived),
		StartedAt:    p.clock.Now(),
		Phases:       make(map[string]PhaseStats, 4),
	}
	if err := paths.Validate(); err != nil {
		return report, err
	}
	p.updateStatus(func(s *RunStatus) { s.RunID = report.RunID })
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started",
		"hourly_obs", paths.HourlyObs,
		"hourly_derived", paths.HourlyDerived,
		"daily_obs", paths.DailyObs,
		"daily_derived", paths.DailyDerived,
	)

	var pending []TableWriter
	defer func() {
		for _, w := range pending {
			if err := w.Abort(); err != nil {
				logger.Warn("discard output failed", "error", err)
			}
		}
	}()

	var hourly *HourlyAccumulation
	err := p.phase(logger, PhaseHourlyScan, &report, func() (PhaseStats, error) {
		var err error
		hourly, err = withReader(p.store, paths.HourlyObs, func(in TableReader) (*HourlyAccumulation, error) {
			return ScanHourly(ctx, in)
		})
		if err != nil {
			return PhaseStats{}, err
		}
		return hourly.Stats, nil
	})
	if err != nil {
		return report, err
	}

	err = p.phase(logger, PhaseHourlyReconcile, &report, func() (PhaseStats, error) {
		return withReader(p.store, paths.HourlyDerived, func(in TableReader) (PhaseStats, error) {
			out, err := p.store.Create(report.HourlyOutput, in.Schema().Columns())
			if err != nil {
				return PhaseStats{}, err
			}
			pending = append(pending, out)
			return ReconcileHourly(ctx, hourly, in, out)
		})
	})
	if err != nil {
		return report, err
	}

	var daily *DailyAccumulation
	err = p.phase(logger, PhaseDailyScan, &report, func() (PhaseStats, error) {
		var err error
		daily, err = withReader(p.store, paths.DailyObs, func(in TableReader) (*DailyAccumulation, error) {
			return ScanDaily(ctx, hourly, in)
		})
		if err != nil {
			return PhaseStats{}, err
		}
		return daily.Stats, nil
	})
	if err != nil {
		return report, err
	}

	var reconciled *DailyReconciliation
	err = p.phase(logger, PhaseDailyReconcile, &report, func() (PhaseStats, error) {
		var err error
		reconciled, err = withReader(p.store, paths.DailyDerived, func(in TableReader) (*DailyReconciliation, error) {
			out, err := p.store.Create(report.DailyOutput, in.Schema().Columns())
			if err != nil {
				return nil, err
			}
			pending = append(pending, out)
			return ReconcileDaily(ctx, daily, in, out, p.clock.Now())
		})
		if err != nil {
			return PhaseStats{}, err
		}
		return reconciled.Stats, nil
	})
	if err != nil {
		return report, err
	}

	report.ZeroHourDays = reconciled.ZeroHourDays
	for i := range reconciled.Summaries {
		reconciled.Summaries[i].RunID = report.RunID
	}
	for _, key := range reconciled.ZeroHourDays {
		logger.Warn("no hourly records to average, writing missing mean", "day", key.String())
		p.metrics.ZeroHourDays.Inc()
	}

	if err := commitAll(logger, pending); err != nil {
		return report, fmt.Errorf("commit outputs: %w", err)
	}
	pending = nil

	report.FinishedAt = p.clock.Now()
	p.metrics.RunDuration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	p.metrics.LastSuccess.Set(float64(report.FinishedAt.Unix()))
	logger.Info("run complete",
		"hourly_output", report.HourlyOutput,
		"daily_output", report.DailyOutput,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	if p.publisher != nil && len(reconciled.Summaries) > 0 {
		if err := p.publisher.PublishDaily(ctx, reconciled.Summaries); err != nil {
			return report, fmt.Errorf("publish daily summaries: %w", err)
		}
		report.Published = len(reconciled.Summaries)
		p.metrics.SummariesPublished.Add(float64(report.Published))
		logger.Info("daily summaries published", "count", report.Published)
	}

	return report, nil
}

// commitAll stages every output before publishing any of them. If a commit
// fails, the outputs already published are reverted.
func commitAll(logger *slog.Logger, outputs []TableWriter) error {
	for _, w := range outputs {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	for i, w := range outputs {
		if err := w.Commit(); err != nil {
			for _, done := range outputs[:i] {
				if rerr := done.Revert(); rerr != nil {
					logger.Error("revert output failed", "error", rerr)
				}
			}
			return err
		}
	}
	return nil
}

// phase runs fn, records its duration and counts, and logs the outcome.
func (p *Pipeline) phase(logger *slog.Logger, name string, report *Report, fn func() (PhaseStats, error)) error {
	start := p.clock.Now()
	p.updateStatus(func(s *RunStatus) { s.Phase = name })
	logger.Debug("phase started", "phase", name)

	stats, err := fn()
	p.metrics.PhaseDuration.WithLabelValues(name).Observe(p.clock.Since(start).Seconds())
	if err != nil {
		logger.Error("phase failed", "phase", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}

	report.Phases[name] = stats
	p.updateStatus(func(s *RunStatus) { s.Completed = append(s.Completed, name) })
	p.recordStats(name, stats)
	logger.Info("phase complete",
		"phase", name,
		"rows", stats.Rows,
		"updated", stats.Updated,
		"passed_through", stats.PassedThrough,
		"missing", stats.Missing,
	)
	if stats.Duplicates > 0 {
		logger.Warn("duplicate keys, last row wins", "phase", name, "duplicates", stats.Duplicates)
	}
	return nil
}

func (p *Pipeline) recordStats(name string, stats PhaseStats) {
	switch name {
	case PhaseHourlyScan:
		p.metrics.RowsRead.WithLabelValues("hourly_obs").Add(float64(stats.Rows))
		p.metrics.MissingResults.WithLabelValues("hourly_obs").Add(float64(stats.Missing))
	case PhaseHourlyReconcile:
		p.metrics.RowsRead.WithLabelValues("hourly_derived").Add(float64(stats.Rows))
		p.metrics.RowsUpdated.WithLabelValues("hourly_derived").Add(float64(stats.Updated))
		p.metrics.RowsPassedThrough.WithLabelValues("hourly_derived").Add(float64(stats.PassedThrough))
	case PhaseDailyScan:
		p.metrics.RowsRead.WithLabelValues("daily_obs").Add(float64(stats.Rows))
		p.metrics.MissingResults.WithLabelValues("daily_obs").Add(float64(stats.Missing))
	case PhaseDailyReconcile:
		p.metrics.RowsRead.WithLabelValues("daily_derived").Add(float64(stats.Rows))
		p.metrics.RowsUpdated.WithLabelValues("daily_derived").Add(float64(stats.Updated))
		p.metrics.RowsPassedThrough.WithLabelValues("daily_derived").Add(float64(stats.PassedThrough))
	}
}

// withReader opens path, runs fn and closes the table.
func withReader[T any](store Store, path string, fn func(TableReader) (T, error)) (T, error) {
	in, err := store.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer in.Close()
	return fn(in)
}

// FileStore reads and writes CSV tables on the local filesystem.
type FileStore struct{}

func (FileStore) Open(path string) (TableReader, error) {
	r, err := table.Open(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (FileStore) Create(path string, columns []string) (TableWriter, error) {
	w, err := table.Create(path, columns)
	if err != nil {
		return nil, err
	}
	return w, nil
}
