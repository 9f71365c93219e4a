// Package controlplane provides the HTTP API and service layer for pomo.
package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/fentz26/pomo/internal/engine"
	"github.com/fentz26/pomo/internal/history"
	"github.com/fentz26/pomo/internal/models"
)

// Timer is the engine surface the control plane drives. *engine.Engine
// satisfies it.
type Timer interface {
	Snapshot() engine.Snapshot
	Subscribe(buffer int) (<-chan engine.Snapshot, func())
	Dispatch(ctx context.Context, ev models.Event) (engine.Snapshot, error)
	UpdateSettings(ctx context.Context, s models.Settings) (engine.Snapshot, error)
	SetAutoAdvance(ctx context.Context, on bool) (engine.Snapshot, error)
	AcknowledgeNotice(id string) error
	DismissNotice(id string) error
}

// History is the read side of the interval store. *store.Store satisfies it.
type History interface {
	Ping(ctx context.Context) error
	QueryRange(ctx context.Context, start, end time.Time) ([]models.CompletedInterval, error)
	ClearIntervals(ctx context.Context) (int64, error)
	ListTransitions(ctx context.Context, limit int) ([]models.TransitionEntry, error)
}

// SettingsPatch carries a partial settings update. Nil fields are unchanged.
type SettingsPatch struct {
	SessionDurationSeconds *int    `json:"session_duration_seconds,omitempty"`
	BreakDurationSeconds   *int    `json:"break_duration_seconds,omitempty"`
	SessionCompleteMessage *string `json:"session_complete_message,omitempty"`
	BreakCompleteMessage   *string `json:"break_complete_message,omitempty"`
	Silent                 *bool   `json:"silent,omitempty"`
	AutoAdvance            *bool   `json:"auto_advance,omitempty"`
}

// Apply returns s with the patch applied.
func (p SettingsPatch) Apply(s models.Settings) models.Settings {
	if p.SessionDurationSeconds != nil {
		s.SessionDurationSeconds = *p.SessionDurationSeconds
	}
	if p.BreakDurationSeconds != nil {
		s.BreakDurationSeconds = *p.BreakDurationSeconds
	}
	if p.SessionCompleteMessage != nil {
		s.SessionCompleteMessage = *p.SessionCompleteMessage
	}
	if p.BreakCompleteMessage != nil {
		s.BreakCompleteMessage = *p.BreakCompleteMessage
	}
	if p.Silent != nil {
		s.Silent = *p.Silent
	}
	return s
}

// Stats is the heat-map data for a window of days.
type Stats struct {
	Today history.Day   `json:"today"`
	Days  []history.Day `json:"days"`
}

// Service provides the control plane business logic.
type Service struct {
	timer   Timer
	history History
	clock   func() time.Time

	// onSettings persists accepted settings changes. Optional.
	onSettings func(models.Settings, bool) error
}

// NewService creates a new control plane service.
func NewService(t Timer, h History) *Service {
	return &Service{
		timer:   t,
		history: h,
		clock:   time.Now,
	}
}

// OnSettingsChanged registers a hook called after settings are applied.
func (s *Service) OnSettingsChanged(fn func(settings models.Settings, autoAdvance bool) error) {
	s.onSettings = fn
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.history.Ping(ctx)
}

// State returns the current timer snapshot.
func (s *Service) State() engine.Snapshot {
	return s.timer.Snapshot()
}

// Subscribe streams snapshots until cancel is called.
func (s *Service) Subscribe(buffer int) (<-chan engine.Snapshot, func()) {
	return s.timer.Subscribe(buffer)
}

// Apply sends a user intent ("start", "pause", "reset", "skip") to the timer.
func (s *Service) Apply(ctx context.Context, intent string) (engine.Snapshot, error) {
	ev, ok := models.ParseEvent(intent)
	if !ok {
		return engine.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownEvent, intent)
	}
	return s.timer.Dispatch(ctx, ev)
}

// Acknowledge confirms the pending notice.
func (s *Service) Acknowledge(id string) error {
	return s.timer.AcknowledgeNotice(id)
}

// Dismiss rejects the pending notice.
func (s *Service) Dismiss(id string) error {
	return s.timer.DismissNotice(id)
}

// UpdateSettings validates and applies a settings patch.
func (s *Service) UpdateSettings(ctx context.Context, p SettingsPatch) (engine.Snapshot, error) {
	cur := s.timer.Snapshot()
	next := p.Apply(cur.Settings)
	if next.SessionDurationSeconds < 1 || next.BreakDurationSeconds < 1 {
		return engine.Snapshot{}, fmt.Errorf("%w: durations must be at least 1 second", ErrInvalidSettings)
	}

	snap, err := s.timer.UpdateSettings(ctx, next)
	if err != nil {
		return engine.Snapshot{}, err
	}
	if p.AutoAdvance != nil {
		if snap, err = s.timer.SetAutoAdvance(ctx, *p.AutoAdvance); err != nil {
			return engine.Snapshot{}, err
		}
	}

	if s.onSettings != nil {
		if err := s.onSettings(snap.Settings, snap.AutoAdvance); err != nil {
			return snap, fmt.Errorf("save settings: %w", err)
		}
	}
	return snap, nil
}

// Intervals returns stored intervals started in [from, to).
func (s *Service) Intervals(ctx context.Context, from, to time.Time) ([]models.CompletedInterval, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidRange)
	}
	return s.history.QueryRange(ctx, from, to)
}

// Stats summarizes the last days local days including today.
func (s *Service) Stats(ctx context.Context, days int) (*Stats, error) {
	now := s.clock()
	start, end := history.Window(now, days)
	intervals, err := s.history.QueryRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Today: history.Today(intervals, now),
		Days:  history.Summarize(intervals),
	}, nil
}

// ClearHistory deletes all stored intervals.
func (s *Service) ClearHistory(ctx context.Context) (int64, error) {
	return s.history.ClearIntervals(ctx)
}

// Transitions returns the most recent journal entries.
func (s *Service) Transitions(ctx context.Context, limit int) ([]models.TransitionEntry, error) {
	return s.history.ListTransitions(ctx, limit)
}
