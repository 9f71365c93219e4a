// Package machine implements the pomodoro state machine.
//
// HandleEvent is a pure function of (event, state, settings, now). It never
// mutates its arguments and performs no I/O; the effects it requests are
// executed by the caller after the returned Transition has been applied.
package machine

import (
	"time"

	"github.com/fentz26/pomo/internal/models"
)

// Notice icons requested by completion transitions.
const (
	IconBreak = "break"
	IconWork  = "work"
)

// EffectKind identifies a side effect requested by a transition.
type EffectKind string

const (
	EffectPersistSession EffectKind = "persist_session"
	EffectPersistBreak   EffectKind = "persist_break"
	EffectShowNotice     EffectKind = "show_notification"
)

// Effect is a side effect to perform after a transition is committed.
type Effect struct {
	Kind EffectKind

	// Interval is set for persist effects. It is captured from the
	// pre-transition state so a later commit cannot alter it.
	Interval models.CompletedInterval

	// Message and Icon are set for notice effects.
	Message string
	Icon    string
}

// Transition is the result of handling one event.
type Transition struct {
	Event            models.Event
	From             models.Phase
	Phase            models.Phase
	RemainingSeconds int

	// SessionRound and BreakRound are zero when unchanged.
	SessionRound int
	BreakRound   int

	// IntervalStartedAt is zero when unchanged.
	IntervalStartedAt time.Time

	Effects []Effect
}

// Changed reports whether the transition moves to a different phase.
func (t Transition) Changed() bool {
	return t.From != t.Phase
}

// Persists reports whether the transition requests any persistence.
func (t Transition) Persists() bool {
	for _, e := range t.Effects {
		if e.Kind == EffectPersistSession || e.Kind == EffectPersistBreak {
			return true
		}
	}
	return false
}

// Notice returns the notice effect, if any.
func (t Transition) Notice() (Effect, bool) {
	for _, e := range t.Effects {
		if e.Kind == EffectShowNotice {
			return e, true
		}
	}
	return Effect{}, false
}

// HandleEvent computes the transition for event in the given state.
// Events that the current phase does not recognise yield a no-op transition.
func HandleEvent(event models.Event, state models.MachineState, settings models.Settings, now time.Time) Transition {
	switch state.Phase {
	case models.PhaseBeforeRun:
		return beforeRun(event, state, settings, now)
	case models.PhaseRunning:
		return running(event, state, settings, now)
	case models.PhasePaused:
		return paused(event, state, settings, now)
	case models.PhaseBeforeBreak:
		return beforeBreak(event, state, settings, now)
	case models.PhaseBreaking:
		return breaking(event, state, settings, now)
	}
	return noop(event, state)
}

func beforeRun(event models.Event, state models.MachineState, settings models.Settings, now time.Time) Transition {
	switch event {
	case models.EventStart:
		t := to(event, state, models.PhaseRunning, settings.SessionDurationSeconds)
		t.IntervalStartedAt = now
		return t
	case models.EventTimerTick:
		return tick(event, state)
	}
	return noop(event, state)
}

func running(event models.Event, state models.MachineState, settings models.Settings, now time.Time) Transition {
	switch event {
	case models.EventPause:
		return to(event, state, models.PhasePaused, state.RemainingSeconds)
	case models.EventReset:
		t := to(event, state, models.PhaseBeforeRun, settings.SessionDurationSeconds)
		t.Effects = []Effect{persist(models.KindSession, state, settings, now)}
		return t
	case models.EventComplete:
		t := to(event, state, models.PhaseBeforeBreak, settings.BreakDurationSeconds)
		t.SessionRound = state.SessionRound + 1
		t.Effects = []Effect{
			persist(models.KindSession, state, settings, now),
			{Kind: EffectShowNotice, Message: settings.BreakCompleteMessage, Icon: IconBreak},
		}
		return t
	case models.EventTimerTick:
		return tick(event, state)
	}
	return noop(event, state)
}

func paused(event models.Event, state models.MachineState, settings models.Settings, now time.Time) Transition {
	switch event {
	case models.EventStart:
		// Resume keeps both the countdown and the original interval start.
		return to(event, state, models.PhaseRunning, state.RemainingSeconds)
	case models.EventReset:
		t := to(event, state, models.PhaseBeforeRun, settings.SessionDurationSeconds)
		t.Effects = []Effect{persist(models.KindSession, state, settings, now)}
		return t
	}
	return noop(event, state)
}

func beforeBreak(event models.Event, state models.MachineState, settings models.Settings, now time.Time) Transition {
	switch event {
	case models.EventStart:
		t := to(event, state, models.PhaseBreaking, settings.BreakDurationSeconds)
		t.IntervalStartedAt = now
		return t
	case models.EventSkip:
		t := to(event, state, models.PhaseRunning, settings.SessionDurationSeconds)
		t.IntervalStartedAt = now
		return t
	case models.EventTimerTick:
		return tick(event, state)
	}
	return noop(event, state)
}

func breaking(event models.Event, state models.MachineState, settings models.Settings, now time.Time) Transition {
	switch event {
	case models.EventSkip:
		t := to(event, state, models.PhaseRunning, settings.SessionDurationSeconds)
		t.BreakRound = state.BreakRound + 1
		t.IntervalStartedAt = now
		t.Effects = []Effect{persist(models.KindBreak, state, settings, now)}
		return t
	case models.EventComplete:
		t := to(event, state, models.PhaseBeforeRun, settings.SessionDurationSeconds)
		t.BreakRound = state.BreakRound + 1
		t.Effects = []Effect{
			persist(models.KindBreak, state, settings, now),
			{Kind: EffectShowNotice, Message: settings.SessionCompleteMessage, Icon: IconWork},
		}
		return t
	case models.EventTimerTick:
		return tick(event, state)
	}
	return noop(event, state)
}

func to(event models.Event, state models.MachineState, phase models.Phase, remaining int) Transition {
	if remaining < 0 {
		remaining = 0
	}
	return Transition{
		Event:            event,
		From:             state.Phase,
		Phase:            phase,
		RemainingSeconds: remaining,
	}
}

func tick(event models.Event, state models.MachineState) Transition {
	remaining := state.RemainingSeconds - 1
	if remaining < 0 {
		remaining = 0
	}
	return to(event, state, state.Phase, remaining)
}

func noop(event models.Event, state models.MachineState) Transition {
	return Transition{
		Event:            event,
		From:             state.Phase,
		Phase:            state.Phase,
		RemainingSeconds: state.RemainingSeconds,
	}
}

func persist(kind models.IntervalKind, state models.MachineState, settings models.Settings, now time.Time) Effect {
	effect := EffectPersistSession
	if kind == models.KindBreak {
		effect = EffectPersistBreak
	}
	return Effect{
		Kind: effect,
		Interval: models.CompletedInterval{
			Kind:                    kind,
			StartedAt:               state.IntervalStartedAt,
			EndedAt:                 now,
			ExpectedDurationSeconds: settings.DurationFor(kind),
		},
	}
}
