// Package models defines the core domain types for pomo.
package models

import "time"

// Phase is the state the timer occupies.
type Phase string

const (
	PhaseBeforeRun   Phase = "before_run"
	PhaseRunning     Phase = "running"
	PhasePaused      Phase = "paused"
	PhaseBeforeBreak Phase = "before_break"
	PhaseBreaking    Phase = "breaking"
)

// Phases lists every phase in lifecycle order.
var Phases = []Phase{PhaseBeforeRun, PhaseRunning, PhasePaused, PhaseBeforeBreak, PhaseBreaking}

// Counting reports whether the countdown ticks in this phase.
func (p Phase) Counting() bool {
	return p == PhaseRunning || p == PhaseBreaking
}

// Event is an input to the state machine.
type Event string

const (
	EventStart     Event = "START"
	EventPause     Event = "PAUSE"
	EventReset     Event = "RESET"
	EventSkip      Event = "SKIP"
	EventComplete  Event = "COMPLETE"
	EventTimerTick Event = "TIMER_TICK"
)

// Events lists every event the machine understands.
var Events = []Event{EventStart, EventPause, EventReset, EventSkip, EventComplete, EventTimerTick}

// ParseEvent maps a user-facing intent name to an Event.
func ParseEvent(s string) (Event, bool) {
	for _, e := range Events {
		if string(e) == s || e.Intent() == s {
			return e, true
		}
	}
	return "", false
}

// Intent returns the lower-case name used by the CLI and HTTP API.
func (e Event) Intent() string {
	switch e {
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventReset:
		return "reset"
	case EventSkip:
		return "skip"
	case EventComplete:
		return "complete"
	case EventTimerTick:
		return "tick"
	}
	return string(e)
}

// IntervalKind distinguishes work sessions from breaks.
type IntervalKind string

const (
	KindSession IntervalKind = "session"
	KindBreak   IntervalKind = "break"
)

// MachineState is the mutable record owned by a single state machine.
type MachineState struct {
	Phase             Phase     `json:"phase"`
	RemainingSeconds  int       `json:"remaining_seconds"`
	SessionRound      int       `json:"session_round"`
	BreakRound        int       `json:"break_round"`
	IntervalStartedAt time.Time `json:"interval_started_at"`
}

// Settings is the configuration consumed by every transition.
type Settings struct {
	SessionDurationSeconds int    `json:"session_duration_seconds" yaml:"session_duration_seconds" mapstructure:"session_duration_seconds"`
	BreakDurationSeconds   int    `json:"break_duration_seconds" yaml:"break_duration_seconds" mapstructure:"break_duration_seconds"`
	SessionCompleteMessage string `json:"session_complete_message" yaml:"session_complete_message" mapstructure:"session_complete_message"`
	BreakCompleteMessage   string `json:"break_complete_message" yaml:"break_complete_message" mapstructure:"break_complete_message"`
	Silent                 bool   `json:"silent" yaml:"silent" mapstructure:"silent"`
}

// DefaultSettings returns a 30 minute session and a 2 minute break.
func DefaultSettings() Settings {
	return Settings{
		SessionDurationSeconds: 30 * 60,
		BreakDurationSeconds:   2 * 60,
		SessionCompleteMessage: "It's time to work!",
		BreakCompleteMessage:   "It's time to take a break!",
		Silent:                 false,
	}
}

// DurationFor returns the configured length of an interval kind in seconds.
func (s Settings) DurationFor(kind IntervalKind) int {
	if kind == KindBreak {
		return s.BreakDurationSeconds
	}
	return s.SessionDurationSeconds
}

// CompletedInterval is a persisted record of a finished or terminated interval.
type CompletedInterval struct {
	ID                      string       `json:"id"`
	Kind                    IntervalKind `json:"kind"`
	StartedAt               time.Time    `json:"started_at"`
	EndedAt                 time.Time    `json:"ended_at"`
	ExpectedDurationSeconds int          `json:"expected_duration_seconds"`
}

// Elapsed returns how long the interval actually lasted.
func (c CompletedInterval) Elapsed() time.Duration {
	return c.EndedAt.Sub(c.StartedAt)
}

// TransitionEntry is a journal record of one committed phase change.
type TransitionEntry struct {
	ID         string    `json:"id"`
	Event      Event     `json:"event"`
	From       Phase     `json:"from"`
	To         Phase     `json:"to"`
	Remaining  int       `json:"remaining_seconds"`
	InputsHash string    `json:"inputs_hash"`
	Timestamp  time.Time `json:"timestamp"`
}
