// Package store provides SQLite-backed persistence for pomo.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/pomo/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the pomo SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode so the CLI can read while the daemon writes
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS intervals (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		expected_seconds INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transitions (
		id TEXT PRIMARY KEY,
		event TEXT NOT NULL,
		from_phase TEXT NOT NULL,
		to_phase TEXT NOT NULL,
		remaining_seconds INTEGER NOT NULL,
		inputs_hash TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_intervals_started_at ON intervals(started_at);
	CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON transitions(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Interval Operations ---

// AppendInterval records a completed interval and returns its ID.
func (s *Store) AppendInterval(ctx context.Context, iv models.CompletedInterval) (string, error) {
	if iv.Kind != models.KindSession && iv.Kind != models.KindBreak {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, iv.Kind)
	}
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO intervals (id, kind, started_at, ended_at, expected_seconds) VALUES (?, ?, ?, ?, ?)`,
		id, iv.Kind, iv.StartedAt.UnixMilli(), iv.EndedAt.UnixMilli(), iv.ExpectedDurationSeconds,
	)
	if err != nil {
		return "", fmt.Errorf("insert interval: %w", err)
	}
	return id, nil
}

// QueryRange returns intervals started in [start, end), oldest first.
func (s *Store) QueryRange(ctx context.Context, start, end time.Time) ([]models.CompletedInterval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, started_at, ended_at, expected_seconds FROM intervals
		 WHERE started_at >= ? AND started_at < ? ORDER BY started_at ASC, rowid ASC`,
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer rows.Close()

	var intervals []models.CompletedInterval
	for rows.Next() {
		var iv models.CompletedInterval
		var startedAt, endedAt int64
		if err := rows.Scan(&iv.ID, &iv.Kind, &startedAt, &endedAt, &iv.ExpectedDurationSeconds); err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		iv.StartedAt = time.UnixMilli(startedAt)
		iv.EndedAt = time.UnixMilli(endedAt)
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// ClearIntervals deletes every recorded interval and returns how many were removed.
func (s *Store) ClearIntervals(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM intervals`)
	if err != nil {
		return 0, fmt.Errorf("clear intervals: %w", err)
	}
	return res.RowsAffected()
}

// --- Transition Journal Operations ---

// WriteTransition appends a journal entry for a committed phase change.
func (s *Store) WriteTransition(ctx context.Context, entry models.TransitionEntry) (*models.TransitionEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (id, event, from_phase, to_phase, remaining_seconds, inputs_hash, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Event, entry.From, entry.To, entry.Remaining, entry.InputsHash, entry.Timestamp.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transition: %w", err)
	}
	return &entry, nil
}

// ListTransitions returns the most recent journal entries, newest first.
func (s *Store) ListTransitions(ctx context.Context, limit int) ([]models.TransitionEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event, from_phase, to_phase, remaining_seconds, inputs_hash, timestamp
		 FROM transitions ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var entries []models.TransitionEntry
	for rows.Next() {
		var e models.TransitionEntry
		var ts int64
		if err := rows.Scan(&e.ID, &e.Event, &e.From, &e.To, &e.Remaining, &e.InputsHash, &ts); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
