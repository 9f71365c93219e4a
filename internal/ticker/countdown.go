// Package ticker provides the out-of-band countdown and the driver that
// bridges its messages into state machine events.
package ticker

import (
	"sync"
	"time"
)

// Kind distinguishes per-second ticks from the terminal done signal.
type Kind int

const (
	KindTick Kind = iota
	KindDone
)

// Message is emitted by a countdown. Seq identifies the Start call that
// produced it.
type Message struct {
	Seq       uint64
	Kind      Kind
	Remaining int
}

// Countdowner is the contract the driver depends on.
type Countdowner interface {
	Start(seconds int) uint64
	Stop()
	Messages() <-chan Message
}

// Countdown runs one countdown goroutine at a time.
type Countdown struct {
	interval time.Duration
	out      chan Message

	mu     sync.Mutex
	seq    uint64
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCountdown creates a countdown emitting once per interval.
// A non-positive interval defaults to one second.
func NewCountdown(interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		interval: interval,
		out:      make(chan Message, 16),
	}
}

// Messages returns the channel all countdowns emit on.
func (c *Countdown) Messages() <-chan Message {
	return c.out
}

// Start stops any running countdown, waits for it to exit, and begins a new
// one from seconds. It returns the sequence number tagging its messages.
func (c *Countdown) Start(seconds int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	c.seq++
	seq := c.seq
	stopCh := make(chan struct{})
	c.stopCh = stopCh

	c.wg.Add(1)
	go c.run(seq, seconds, stopCh)
	return seq
}

// Stop halts the running countdown. It is safe to call when idle.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Countdown) stopLocked() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	c.stopCh = nil
	c.wg.Wait()
}

func (c *Countdown) run(seq uint64, remaining int, stopCh <-chan struct{}) {
	defer c.wg.Done()

	if remaining <= 0 {
		c.emit(stopCh, Message{Seq: seq, Kind: KindDone})
		return
	}

	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-t.C:
			remaining--
			if remaining <= 0 {
				c.emit(stopCh, Message{Seq: seq, Kind: KindDone})
				return
			}
			if !c.emit(stopCh, Message{Seq: seq, Kind: KindTick, Remaining: remaining}) {
				return
			}
		}
	}
}

func (c *Countdown) emit(stopCh <-chan struct{}, msg Message) bool {
	// A stop that races a ready send must win.
	select {
	case <-stopCh:
		return false
	default:
	}
	select {
	case <-stopCh:
		return false
	case c.out <- msg:
		return true
	}
}
