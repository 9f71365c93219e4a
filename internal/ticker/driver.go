package ticker

import (
	"log"

	"github.com/fentz26/pomo/internal/models"
)

// Driver keeps at most one countdown subscription alive and translates its
// messages into state machine events.
type Driver struct {
	countdown Countdowner
	active    uint64
}

// NewDriver wraps a countdown.
func NewDriver(c Countdowner) *Driver {
	return &Driver{countdown: c}
}

// Messages exposes the underlying countdown channel.
func (d *Driver) Messages() <-chan Message {
	return d.countdown.Messages()
}

// Active reports whether a subscription is live.
func (d *Driver) Active() bool {
	return d.active != 0
}

// Sync reacts to a committed transition. Entering a counting phase from any
// other phase restarts the countdown seeded with remaining; leaving one
// stops it. It must run before the transition's effects.
func (d *Driver) Sync(from, to models.Phase, remaining int) {
	switch {
	case to.Counting() && (from != to || d.active == 0):
		d.Stop()
		d.active = d.countdown.Start(remaining)
	case !to.Counting() && d.active != 0:
		d.Stop()
	}
}

// Stop ends the active subscription. Later messages it produced are dropped
// by Accept.
func (d *Driver) Stop() {
	d.countdown.Stop()
	d.active = 0
}

// Accept maps a countdown message to an event. Messages from superseded or
// stopped subscriptions are rejected.
func (d *Driver) Accept(msg Message) (models.Event, bool) {
	if d.active == 0 || msg.Seq != d.active {
		return "", false
	}
	switch msg.Kind {
	case KindTick:
		return models.EventTimerTick, true
	case KindDone:
		// The countdown stops itself after done.
		d.active = 0
		return models.EventComplete, true
	}
	log.Printf("ticker: unknown message kind %d", msg.Kind)
	return "", false
}
