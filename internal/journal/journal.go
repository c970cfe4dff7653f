// Package journal keeps a local SQLite record of migration runs: who was
// migrated where, how far each run got and the digests of the dump it moved.
//
// A *Journal implements migration.Recorder and is passed to the migrator with
// migration.WithRecorder. The history command reads it back with List.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
	"github.com/giantswarm/kube-dbmigrate/internal/migration"
)

// DefaultFileName is the journal database file name under the user config
// directory.
const DefaultFileName = "journal.db"

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Journal is a SQLite-backed run journal. It is safe for concurrent use.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ migration.Recorder = (*Journal)(nil)

// Entry is one recorded run.
type Entry struct {
	ID          string
	Vendor      string
	Source      k8s.Target
	Destination k8s.Target
	State       migration.State
	FailedAt    migration.State
	Error       string
	Artifact    migration.DumpArtifact
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// Succeeded reports whether the run reached Done.
func (e Entry) Succeeded() bool {
	return e.State == migration.StateDone
}

// StateChange is one recorded transition of a run.
type StateChange struct {
	State     migration.State
	ChangedAt time.Time
}

// DefaultPath returns the journal location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "kube-dbmigrate", DefaultFileName), nil
}

// Open opens or creates the journal at path and brings its schema up to date.
// Use ":memory:" for a throwaway journal.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure journal (%s): %w", pragma, err)
		}
	}

	if err := migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal schema: %w", err)
	}

	return &Journal{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RunStarted implements migration.Recorder.
func (j *Journal) RunStarted(ctx context.Context, run migration.RunInfo) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, vendor, source_context, source_namespace, source_pod,
		 dest_context, dest_namespace, dest_pod, state, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Vendor,
		run.Source.Context, run.Source.Namespace, run.Source.Pod,
		run.Destination.Context, run.Destination.Namespace, run.Destination.Pod,
		string(migration.StateStart), run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// StateChanged implements migration.Recorder.
func (j *Journal) StateChanged(ctx context.Context, runID string, state migration.State) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "UPDATE runs SET state = ? WHERE id = ?", string(state), runID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: %w", runID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO run_states (run_id, state, changed_at) VALUES (?, ?, ?)",
		runID, string(state), j.now().UTC(),
	); err != nil {
		return fmt.Errorf("insert state change for run %s: %w", runID, err)
	}

	return tx.Commit()
}

// RunFinished implements migration.Recorder.
func (j *Journal) RunFinished(ctx context.Context, runID string, outcome migration.Outcome) error {
	var errText string
	if outcome.Err != nil {
		errText = outcome.Err.Error()
	}
	a := outcome.Artifact

	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, failed_at = ?, error = ?,
		 remote_path = ?, local_path = ?, destination_path = ?, compressed = ?, size_bytes = ?,
		 source_hash = ?, local_hash = ?, destination_hash = ?, finished_at = ?
		 WHERE id = ?`,
		string(outcome.State), string(outcome.FailedAt), errText,
		a.RemotePath, a.LocalPath, a.DestinationPath, a.Compressed, a.SizeBytes,
		a.SourceHash, a.LocalHash, a.DestinationHash, outcome.FinishedAt.UTC(),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

const selectRun = `SELECT id, vendor, source_context, source_namespace, source_pod,
	dest_context, dest_namespace, dest_pod, state, failed_at, error,
	remote_path, local_path, destination_path, compressed, size_bytes,
	source_hash, local_hash, destination_hash, started_at, finished_at
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e               Entry
		state, failedAt string
		finished        sql.NullTime
	)
	err := row.Scan(&e.ID, &e.Vendor,
		&e.Source.Context, &e.Source.Namespace, &e.Source.Pod,
		&e.Destination.Context, &e.Destination.Namespace, &e.Destination.Pod,
		&state, &failedAt, &e.Error,
		&e.Artifact.RemotePath, &e.Artifact.LocalPath, &e.Artifact.DestinationPath,
		&e.Artifact.Compressed, &e.Artifact.SizeBytes,
		&e.Artifact.SourceHash, &e.Artifact.LocalHash, &e.Artifact.DestinationHash,
		&e.StartedAt, &finished,
	)
	if err != nil {
		return nil, err
	}
	e.State = migration.State(state)
	e.FailedAt = migration.State(failedAt)
	if finished.Valid {
		t := finished.Time
		e.FinishedAt = &t
	}
	return &e, nil
}

// List returns the most recent runs first. A limit of zero or less returns
// every run.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	query := selectRun + " ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Get returns a single run.
func (j *Journal) Get(ctx context.Context, runID string) (*Entry, error) {
	e, err := scanEntry(j.db.QueryRowContext(ctx, selectRun+" WHERE id = ?", runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return e, nil
}

// States returns the recorded transitions of a run in order.
func (j *Journal) States(ctx context.Context, runID string) ([]StateChange, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT state, changed_at FROM run_states WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("list states of run %s: %w", runID, err)
	}
	defer rows.Close()

	var changes []StateChange
	for rows.Next() {
		var (
			c     StateChange
			state string
		)
		if err := rows.Scan(&state, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		c.State = migration.State(state)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
