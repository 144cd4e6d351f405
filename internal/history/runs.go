package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run is one recorded sort.
type Run struct {
	ID           string
	Source       string
	Destination  string
	Mode         string
	Archive      bool
	Converted    bool
	Total        int
	DICOM        int
	NonDICOM     int
	Collisions   int
	Failed       int
	Duration     time.Duration
	Status       string
	ErrorMessage string
	LogPath      string
	StartedAt    time.Time
	FinishedAt   time.Time
}

var (
	// ErrRunNotFound indicates no recorded run matches the requested ID.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRun indicates an ID prefix matches more than one run.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

const runColumns = `id, source, destination, mode, archive, converted, total_files, dicom_files,
    non_dicom_files, collisions, failed_files, duration_ms, status, error_message, log_path, started_at, finished_at`

// RecordRun inserts or replaces run.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.Status == "" {
		run.Status = StatusCompleted
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt.Add(-run.Duration)
	}
	err := s.exec(ctx,
		`INSERT OR REPLACE INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Source,
		nullableString(run.Destination),
		run.Mode,
		boolToInt(run.Archive),
		boolToInt(run.Converted),
		run.Total,
		run.DICOM,
		run.NonDICOM,
		run.Collisions,
		run.Failed,
		run.Duration.Milliseconds(),
		run.Status,
		nullableString(run.ErrorMessage),
		nullableString(run.LogPath),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the run whose ID starts with prefix. An empty prefix
// selects the most recent run.
func (s *Store) FindRun(ctx context.Context, prefix string) (Run, error) {
	ctx = ensureContext(ctx)
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	query := `SELECT ` + runColumns + ` FROM runs WHERE id LIKE ? ORDER BY started_at DESC, id LIMIT 2`
	rows, err := s.db.QueryContext(ctx, query, prefix+"%")
	if err != nil {
		return Run{}, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate runs: %w", err)
	}
	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%w: %q", ErrRunNotFound, prefix)
	case len(matches) > 1 && prefix != "":
		return Run{}, fmt.Errorf("%w: %q", ErrAmbiguousRun, prefix)
	}
	return matches[0], nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run                   Run
		destination, errMsg   sql.NullString
		logPath               sql.NullString
		archive, converted    int
		durationMS            int64
		startedAt, finishedAt string
	)
	if err := rows.Scan(
		&run.ID, &run.Source, &destination, &run.Mode, &archive, &converted,
		&run.Total, &run.DICOM, &run.NonDICOM, &run.Collisions, &run.Failed,
		&durationMS, &run.Status, &errMsg, &logPath, &startedAt, &finishedAt,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Destination = destination.String
	run.ErrorMessage = errMsg.String
	run.LogPath = logPath.String
	run.Archive = archive != 0
	run.Converted = converted != 0
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	return run, nil
}
