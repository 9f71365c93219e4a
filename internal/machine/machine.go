package machine

import (
	"time"

	"github.com/fentz26/pomo/internal/models"
)

// Machine owns a MachineState and commits transitions into it.
// It is not safe for concurrent use; callers serialise access.
type Machine struct {
	state    models.MachineState
	settings models.Settings
	clock    func() time.Time
}

// New creates an idle machine armed with the configured session duration.
// A nil clock defaults to time.Now.
func New(settings models.Settings, clock func() time.Time) *Machine {
	if clock == nil {
		clock = time.Now
	}
	return &Machine{
		state: models.MachineState{
			Phase:             models.PhaseBeforeRun,
			RemainingSeconds:  max(0, settings.SessionDurationSeconds),
			SessionRound:      1,
			BreakRound:        1,
			IntervalStartedAt: clock(),
		},
		settings: settings,
		clock:    clock,
	}
}

// State returns a copy of the current state.
func (m *Machine) State() models.MachineState {
	return m.state
}

// Settings returns the settings used for the next transition.
func (m *Machine) Settings() models.Settings {
	return m.settings
}

// Now reads the machine's clock.
func (m *Machine) Now() time.Time {
	return m.clock()
}

// Handle computes the transition for event without committing it.
func (m *Machine) Handle(event models.Event) Transition {
	return HandleEvent(event, m.state, m.settings, m.clock())
}

// Apply commits a transition returned by Handle.
func (m *Machine) Apply(t Transition) {
	m.state.Phase = t.Phase
	m.state.RemainingSeconds = t.RemainingSeconds
	if t.SessionRound > 0 {
		m.state.SessionRound = t.SessionRound
	}
	if t.BreakRound > 0 {
		m.state.BreakRound = t.BreakRound
	}
	if !t.IntervalStartedAt.IsZero() {
		m.state.IntervalStartedAt = t.IntervalStartedAt
	}
}

// SetSettings replaces the settings used by later transitions. A changed
// session duration re-arms the clock while idle before a run, and a changed
// break duration re-arms it while waiting for a break. It reports whether
// RemainingSeconds was re-armed.
func (m *Machine) SetSettings(s models.Settings) bool {
	prev := m.settings
	m.settings = s

	switch {
	case m.state.Phase == models.PhaseBeforeRun && s.SessionDurationSeconds != prev.SessionDurationSeconds:
		m.state.RemainingSeconds = max(0, s.SessionDurationSeconds)
		return true
	case m.state.Phase == models.PhaseBeforeBreak && s.BreakDurationSeconds != prev.BreakDurationSeconds:
		m.state.RemainingSeconds = max(0, s.BreakDurationSeconds)
		return true
	}
	return false
}

// SeedRounds sets the round counters from today's stored intervals.
func (m *Machine) SeedRounds(today []models.CompletedInterval) {
	sessions, breaks := 0, 0
	for _, iv := range today {
		switch iv.Kind {
		case models.KindSession:
			sessions++
		case models.KindBreak:
			breaks++
		}
	}
	m.state.SessionRound = sessions + 1
	m.state.BreakRound = breaks + 1
}

// Rollover folds a day change into t. When t is a START or SKIP that begins
// a new interval, or a RESET, and now is on a different calendar day than
// the interval in state started, both rounds restart at 1. Resuming a paused
// session and events the phase ignores never roll over. It reports whether
// the rounds were reset.
func Rollover(t Transition, state models.MachineState, now time.Time) (Transition, bool) {
	if !t.Changed() {
		return t, false
	}
	switch t.Event {
	case models.EventStart, models.EventSkip:
		if t.IntervalStartedAt.IsZero() {
			return t, false
		}
	case models.EventReset:
	default:
		return t, false
	}
	if SameDay(state.IntervalStartedAt, now) {
		return t, false
	}
	t.SessionRound = 1
	t.BreakRound = 1
	return t, true
}

// SameDay reports whether a and b fall on the same local calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

// DayBounds returns the start of t's local day and the start of the next.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.Local()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
