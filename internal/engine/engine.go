// Package engine runs a pomodoro state machine: it serialises every event
// through one loop, drives the countdown, and executes transition effects.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/fentz26/pomo/internal/machine"
	"github.com/fentz26/pomo/internal/models"
	"github.com/fentz26/pomo/internal/notify"
	"github.com/fentz26/pomo/internal/ticker"
)

var (
	// ErrNotIntent is returned when Dispatch is given a clock event.
	ErrNotIntent = errors.New("event is not a user intent")
	// ErrStopped is returned when the engine loop is no longer running.
	ErrStopped = errors.New("engine stopped")
	// ErrNoResolver is returned when the notifier cannot be resolved in-process.
	ErrNoResolver = errors.New("notifier does not accept responses")
)

// IntervalStore persists completed intervals. *store.Store satisfies it.
type IntervalStore interface {
	AppendInterval(ctx context.Context, iv models.CompletedInterval) (string, error)
	QueryRange(ctx context.Context, start, end time.Time) ([]models.CompletedInterval, error)
}

// Journal records committed transitions. *audit.Journal satisfies it.
type Journal interface {
	Record(ctx context.Context, event models.Event, prev, next models.MachineState, settings models.Settings) (*models.TransitionEntry, error)
}

// Options configures an Engine.
type Options struct {
	Settings    models.Settings
	AutoAdvance bool

	// Clock defaults to time.Now.
	Clock func() time.Time
	// Countdown defaults to a one second countdown.
	Countdown ticker.Countdowner
	// Journal is optional.
	Journal Journal
	// OnPersisted is called from the effect goroutine after each append.
	OnPersisted func(models.CompletedInterval)
}

// Snapshot is a read-only view of the engine for frontends.
type Snapshot struct {
	State       models.MachineState `json:"state"`
	Settings    models.Settings     `json:"settings"`
	PhaseText   string              `json:"phase_text"`
	DisplayTime string              `json:"display_time"`
	InSession   bool                `json:"in_session"`
	AutoAdvance bool                `json:"auto_advance"`
	Notice      *notify.Notice      `json:"notice,omitempty"`
	// NoticesUnavailable is set once the notifier has reported it cannot
	// show notices.
	NoticesUnavailable bool `json:"notices_unavailable"`
}

type requestKind int

const (
	reqIntent requestKind = iota
	reqSettings
	reqAutoAdvance
	reqNotice
	reqNoticeResolved
)

type request struct {
	kind        requestKind
	event       models.Event
	settings    models.Settings
	autoAdvance bool
	gen         uint64
	notice      notify.Notice
	err         error
	reply       chan Snapshot
	posted      chan (<-chan error)
}

// Engine owns one state machine. All state changes happen on the goroutine
// running Run.
type Engine struct {
	machine     *machine.Machine
	driver      *ticker.Driver
	store       IntervalStore
	notifier    notify.Notifier
	journal     Journal
	onPersisted func(models.CompletedInterval)

	requests chan request
	stopped  chan struct{}
	runOnce  sync.Once

	// Owned by the loop.
	autoAdvance bool
	gen         uint64
	notice      *notify.Notice
	unavailable bool

	mu   sync.RWMutex
	snap Snapshot
	subs map[chan Snapshot]struct{}

	effects conc.WaitGroup
}

// New creates an engine and seeds its round counters from today's stored
// intervals. A failed seed query is logged and leaves both rounds at 1.
func New(ctx context.Context, st IntervalStore, n notify.Notifier, opts Options) *Engine {
	countdown := opts.Countdown
	if countdown == nil {
		countdown = ticker.NewCountdown(time.Second)
	}

	e := &Engine{
		machine:     machine.New(opts.Settings, opts.Clock),
		driver:      ticker.NewDriver(countdown),
		store:       st,
		notifier:    n,
		journal:     opts.Journal,
		onPersisted: opts.OnPersisted,
		autoAdvance: opts.AutoAdvance,
		requests:    make(chan request),
		stopped:     make(chan struct{}),
		subs:        make(map[chan Snapshot]struct{}),
	}

	start, end := machine.DayBounds(e.machine.Now())
	today, err := st.QueryRange(ctx, start, end)
	if err != nil {
		log.Printf("engine: seed rounds: %v", err)
	} else {
		e.machine.SeedRounds(today)
	}

	e.publish()
	return e
}

// Run processes events until ctx is cancelled. On return the countdown is
// stopped and in-flight effects have finished.
func (e *Engine) Run(ctx context.Context) error {
	first := false
	e.runOnce.Do(func() { first = true })
	if !first {
		return errors.New("engine already running")
	}

	defer func() {
		close(e.stopped)
		e.driver.Stop()
		e.notifier.CloseActive()
		e.effects.Wait()
		e.closeSubscribers()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-e.driver.Messages():
			if ev, ok := e.driver.Accept(msg); ok {
				e.step(ctx, ev)
			}
		case req := <-e.requests:
			e.handle(ctx, req)
		}
	}
}

func (e *Engine) handle(ctx context.Context, req request) {
	switch req.kind {
	case reqIntent:
		// Any user intent supersedes an outstanding notice, including one
		// whose post is still waiting on persistence: bumping gen drops it.
		e.gen++
		e.notifier.CloseActive()
		hadNotice := e.notice != nil
		e.notice = nil
		if !e.step(ctx, req.event) && hadNotice {
			e.publish()
		}

	case reqSettings:
		if e.machine.SetSettings(req.settings) {
			log.Printf("engine: re-armed %s at %ds", e.machine.State().Phase, e.machine.State().RemainingSeconds)
		}
		e.publish()

	case reqAutoAdvance:
		e.autoAdvance = req.autoAdvance
		e.publish()

	case reqNotice:
		// Posting happens here so a later intent always closes it.
		var result <-chan error
		if req.gen == e.gen {
			ch, err := e.notifier.Post(req.notice)
			if err != nil {
				e.noticeFailed(err)
			} else {
				n := req.notice
				e.notice = &n
				result = ch
			}
			e.publish()
		}
		req.posted <- result

	case reqNoticeResolved:
		if e.notice != nil && e.notice.ID == req.notice.ID {
			e.notice = nil
		}
		if req.err == nil {
			// A chained start only applies if nothing happened since.
			if e.autoAdvance && req.gen == e.gen {
				e.step(ctx, models.EventStart)
			}
		} else {
			e.noticeFailed(req.err)
		}
		e.publish()
	}

	if req.reply != nil {
		req.reply <- e.Snapshot()
	}
}

func (e *Engine) noticeFailed(err error) {
	switch {
	case errors.Is(err, notify.ErrUnavailable):
		if !e.unavailable {
			log.Printf("engine: notices unavailable, continuing without them")
		}
		e.unavailable = true
	case errors.Is(err, notify.ErrDismissed), errors.Is(err, notify.ErrClosed):
	default:
		log.Printf("engine: notice: %v", err)
	}
}

// step handles one event: commit, sync the countdown, journal, publish, then
// hand effects to their own goroutine. It reports whether anything changed.
func (e *Engine) step(ctx context.Context, ev models.Event) bool {
	prev := e.machine.State()
	settings := e.machine.Settings()
	now := e.machine.Now()
	t, rolled := machine.Rollover(machine.HandleEvent(ev, prev, settings, now), prev, now)
	if rolled {
		log.Printf("engine: new day, rounds reset")
	}
	e.machine.Apply(t)
	next := e.machine.State()

	if next == prev && len(t.Effects) == 0 {
		return false
	}

	e.driver.Sync(t.From, t.Phase, next.RemainingSeconds)

	if t.Changed() {
		e.gen++
		if e.journal != nil {
			if _, err := e.journal.Record(ctx, ev, prev, next, settings); err != nil {
				log.Printf("engine: journal %s: %v", ev, err)
			}
		}
	}

	e.publish()

	if len(t.Effects) > 0 {
		gen := e.gen
		effects := t.Effects
		e.effects.Go(func() { e.runEffects(ctx, gen, effects, settings) })
	}
	return true
}

// runEffects persists before notifying.
func (e *Engine) runEffects(ctx context.Context, gen uint64, effects []machine.Effect, settings models.Settings) {
	persistCtx := context.WithoutCancel(ctx)
	for _, eff := range effects {
		if eff.Kind != machine.EffectPersistSession && eff.Kind != machine.EffectPersistBreak {
			continue
		}
		iv := eff.Interval
		id, err := e.store.AppendInterval(persistCtx, iv)
		if err != nil {
			log.Printf("engine: persist %s: %v", iv.Kind, err)
			continue
		}
		iv.ID = id
		if e.onPersisted != nil {
			e.onPersisted(iv)
		}
	}

	for _, eff := range effects {
		if eff.Kind != machine.EffectShowNotice {
			continue
		}
		n := notify.Notice{
			ID:       uuid.New().String(),
			Title:    "pomo",
			Message:  eff.Message,
			Icon:     eff.Icon,
			Silent:   settings.Silent,
			PostedAt: time.Now(),
		}
		posted := make(chan (<-chan error), 1)
		if !e.post(request{kind: reqNotice, notice: n, gen: gen, posted: posted}) {
			return
		}
		result := <-posted
		if result == nil {
			continue
		}
		var err error
		select {
		case err = <-result:
		case <-ctx.Done():
			return
		}
		e.post(request{kind: reqNoticeResolved, notice: n, gen: gen, err: err})
	}
}

// post delivers a request to the loop unless it has stopped.
func (e *Engine) post(req request) bool {
	select {
	case e.requests <- req:
		return true
	case <-e.stopped:
		return false
	}
}

func (e *Engine) call(ctx context.Context, req request) (Snapshot, error) {
	req.reply = make(chan Snapshot, 1)
	select {
	case e.requests <- req:
	case <-e.stopped:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Dispatch submits a user intent and returns the snapshot after it is handled.
func (e *Engine) Dispatch(ctx context.Context, ev models.Event) (Snapshot, error) {
	switch ev {
	case models.EventStart, models.EventPause, models.EventReset, models.EventSkip:
	default:
		return Snapshot{}, ErrNotIntent
	}
	return e.call(ctx, request{kind: reqIntent, event: ev})
}

// UpdateSettings replaces the settings used by later transitions.
func (e *Engine) UpdateSettings(ctx context.Context, s models.Settings) (Snapshot, error) {
	return e.call(ctx, request{kind: reqSettings, settings: s})
}

// SetAutoAdvance switches whether acknowledging a notice starts the next interval.
func (e *Engine) SetAutoAdvance(ctx context.Context, on bool) (Snapshot, error) {
	return e.call(ctx, request{kind: reqAutoAdvance, autoAdvance: on})
}

// AcknowledgeNotice confirms the pending notice. An empty id matches any.
func (e *Engine) AcknowledgeNotice(id string) error {
	r, ok := e.notifier.(notify.Resolver)
	if !ok {
		return ErrNoResolver
	}
	return r.Acknowledge(id)
}

// DismissNotice rejects the pending notice. An empty id matches any.
func (e *Engine) DismissNotice(id string) error {
	r, ok := e.notifier.(notify.Resolver)
	if !ok {
		return ErrNoResolver
	}
	return r.Dismiss(id)
}

// Snapshot returns the latest published view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Subscribe returns a channel receiving every published snapshot and a
// function to cancel the subscription. Slow subscribers only miss
// intermediate snapshots, never the latest.
func (e *Engine) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	e.mu.Lock()
	if e.subs == nil {
		close(ch)
		e.mu.Unlock()
		return ch, func() {}
	}
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.subs[ch]; ok {
				delete(e.subs, ch)
				close(ch)
			}
		})
	}
}

func (e *Engine) publish() {
	st := e.machine.State()
	snap := Snapshot{
		State:              st,
		Settings:           e.machine.Settings(),
		PhaseText:          machine.PhaseText(st),
		DisplayTime:        machine.DisplayTime(st),
		InSession:          machine.InSession(st),
		AutoAdvance:        e.autoAdvance,
		NoticesUnavailable: e.unavailable,
	}
	if e.notice != nil {
		n := *e.notice
		snap.Notice = &n
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = snap
	for ch := range e.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest so the latest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (e *Engine) closeSubscribers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}
