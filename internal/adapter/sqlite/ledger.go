package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/agmet-derive/internal/pipeline"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Run status values stored in the ledger.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Ledger records the outcome of every run in a SQLite database so operators
// can see when each station was last derived and what changed.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the ledger database at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// One writer; the driver serializes anyway.
	db.SetMaxOpenConns(1)

	l := New(db, logger)
	if err := l.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// RunRecord is one row of the runs table with its phase counts.
type RunRecord struct {
	RunID        string
	Status       string
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
	HourlyOutput string
	DailyOutput  string
	Published    int
	ZeroHourDays int
	Phases       map[string]pipeline.PhaseStats
}

// RecordRun stores report and the run's error, if any, in one transaction.
func (l *Ledger) RecordRun(ctx context.Context, report pipeline.Report, runErr error) error {
	status, errText := StatusSucceeded, ""
	if runErr != nil {
		status, errText = StatusFailed, runErr.Error()
	}
	var finished any
	if !report.FinishedAt.IsZero() {
		finished = report.FinishedAt.UTC()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, status, error, started_at, finished_at, hourly_output, daily_output, published, zero_hour_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, status, errText, report.StartedAt.UTC(), finished,
		report.HourlyOutput, report.DailyOutput, report.Published, len(report.ZeroHourDays)); err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}

	phases := make([]string, 0, len(report.Phases))
	for name := range report.Phases {
		phases = append(phases, name)
	}
	slices.Sort(phases)
	for _, name := range phases {
		st := report.Phases[name]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_phases (run_id, phase, rows_read, updated, passed_through, missing, duplicates)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, name, st.Rows, st.Updated, st.PassedThrough, st.Missing, st.Duplicates); err != nil {
			return fmt.Errorf("insert phase %s of run %s: %w", name, report.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", report.RunID, err)
	}
	l.logger.Debug("run recorded", "run_id", report.RunID, "status", status)
	return nil
}

// Run returns the record for runID, or nil if there is none.
func (l *Ledger) Run(ctx context.Context, runID string) (*RunRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT run_id, status, error, started_at, finished_at, hourly_output, daily_output, published, zero_hour_days
		FROM runs WHERE run_id = ?
	`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := l.loadPhases(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// LastSuccess returns the most recent successful run, or nil if none.
func (l *Ledger) LastSuccess(ctx context.Context) (*RunRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT run_id, status, error, started_at, finished_at, hourly_output, daily_output, published, zero_hour_days
		FROM runs WHERE status = ?
		ORDER BY finished_at DESC
		LIMIT 1
	`, StatusSucceeded)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := l.loadPhases(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func scanRun(row *sql.Row) (*RunRecord, error) {
	var rec RunRecord
	var finished sql.NullTime
	if err := row.Scan(&rec.RunID, &rec.Status, &rec.Error, &rec.StartedAt, &finished,
		&rec.HourlyOutput, &rec.DailyOutput, &rec.Published, &rec.ZeroHourDays); err != nil {
		return nil, err
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	return &rec, nil
}

func (l *Ledger) loadPhases(ctx context.Context, rec *RunRecord) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT phase, rows_read, updated, passed_through, missing, duplicates
		FROM run_phases WHERE run_id = ?
	`, rec.RunID)
	if err != nil {
		return fmt.Errorf("query phases of run %s: %w", rec.RunID, err)
	}
	defer rows.Close()

	rec.Phases = make(map[string]pipeline.PhaseStats)
	for rows.Next() {
		var name string
		var st pipeline.PhaseStats
		if err := rows.Scan(&name, &st.Rows, &st.Updated, &st.PassedThrough, &st.Missing, &st.Duplicates); err != nil {
			return err
		}
		rec.Phases[name] = st
	}
	return rows.Err()
}
