package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/pomo/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	if _, err := s.AppendInterval(ctx, interval(models.KindSession, base)); err != nil {
		t.Fatalf("AppendInterval failed: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	got, err := s.QueryRange(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 interval after reopen, got %d", len(got))
	}
}

func TestAppendAndQueryRange(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)
	records := []models.CompletedInterval{
		interval(models.KindSession, day.Add(9*time.Hour)),
		interval(models.KindBreak, day.Add(9*time.Hour+30*time.Minute)),
		interval(models.KindSession, day.Add(-time.Hour)),   // previous day
		interval(models.KindSession, day.Add(24*time.Hour)), // exactly at the end bound
	}
	for _, rec := range records {
		id, err := s.AppendInterval(ctx, rec)
		if err != nil {
			t.Fatalf("AppendInterval failed: %v", err)
		}
		if id == "" {
			t.Error("Interval ID should not be empty")
		}
	}

	got, err := s.QueryRange(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 intervals, got %d", len(got))
	}
	if got[0].Kind != models.KindSession || got[1].Kind != models.KindBreak {
		t.Errorf("Expected session then break, got %s then %s", got[0].Kind, got[1].Kind)
	}
	if !got[0].StartedAt.Equal(records[0].StartedAt) {
		t.Errorf("StartedAt mismatch: %v != %v", got[0].StartedAt, records[0].StartedAt)
	}
	if !got[0].EndedAt.Equal(records[0].EndedAt) {
		t.Errorf("EndedAt mismatch: %v != %v", got[0].EndedAt, records[0].EndedAt)
	}
	if got[0].ExpectedDurationSeconds != 1500 {
		t.Errorf("Expected duration 1500, got %d", got[0].ExpectedDurationSeconds)
	}
}

func TestQueryRangeEmpty(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	now := time.Now()
	got, err := s.QueryRange(context.Background(), now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no intervals, got %d", len(got))
	}
}

func TestAppendIntervalRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	_, err := s.AppendInterval(context.Background(), models.CompletedInterval{Kind: "nap"})
	if !errors.Is(err, ErrInvalidKind) {
		t.Errorf("Expected ErrInvalidKind, got %v", err)
	}
}

func TestClearIntervals(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	for i := 0; i < 3; i++ {
		if _, err := s.AppendInterval(ctx, interval(models.KindSession, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("AppendInterval failed: %v", err)
		}
	}

	n, err := s.ClearIntervals(ctx)
	if err != nil {
		t.Fatalf("ClearIntervals failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 removed, got %d", n)
	}

	got, err := s.QueryRange(ctx, base.Add(-time.Hour), base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty store after clear, got %d", len(got))
	}
}

func TestTransitionJournal(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	first, err := s.WriteTransition(ctx, models.TransitionEntry{
		Event: models.EventStart, From: models.PhaseBeforeRun, To: models.PhaseRunning,
		Remaining: 1500, InputsHash: "abc", Timestamp: base,
	})
	if err != nil {
		t.Fatalf("WriteTransition failed: %v", err)
	}
	if first.ID == "" {
		t.Error("Transition ID should not be empty")
	}

	if _, err := s.WriteTransition(ctx, models.TransitionEntry{
		Event: models.EventPause, From: models.PhaseRunning, To: models.PhasePaused,
		Remaining: 1400, InputsHash: "def", Timestamp: base.Add(100 * time.Second),
	}); err != nil {
		t.Fatalf("WriteTransition failed: %v", err)
	}

	entries, err := s.ListTransitions(ctx, 10)
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Event != models.EventPause {
		t.Errorf("Expected newest entry first, got %s", entries[0].Event)
	}
	if entries[1].From != models.PhaseBeforeRun || entries[1].To != models.PhaseRunning {
		t.Errorf("Unexpected phases %s -> %s", entries[1].From, entries[1].To)
	}

	limited, err := s.ListTransitions(ctx, 1)
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 entry with limit, got %d", len(limited))
	}
}

// newTestStore creates a temporary store for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return s
}

func interval(kind models.IntervalKind, start time.Time) models.CompletedInterval {
	expected := 1500
	if kind == models.KindBreak {
		expected = 300
	}
	return models.CompletedInterval{
		Kind:                    kind,
		StartedAt:               start,
		EndedAt:                 start.Add(time.Duration(expected) * time.Second),
		ExpectedDurationSeconds: expected,
	}
}
