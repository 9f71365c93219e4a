// Package notify presents completion notices and waits for the user to
// resolve them.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDismissed is returned when the user dismisses a notice.
	ErrDismissed = errors.New("notice dismissed")
	// ErrClosed is returned when a notice is closed without user input.
	ErrClosed = errors.New("notice closed")
	// ErrUnavailable is returned when notices cannot be shown at all.
	ErrUnavailable = errors.New("notifications unavailable")
	// ErrNoPending is returned when there is no matching notice to resolve.
	ErrNoPending = errors.New("no pending notice")
)

// Notice is a completion message awaiting confirmation.
type Notice struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Icon     string    `json:"icon"`
	Silent   bool      `json:"silent"`
	PostedAt time.Time `json:"posted_at"`
}

// Notifier presents notices. Post shows n, replacing any earlier notice,
// and returns a channel that receives its resolution exactly once: nil when
// acknowledged, ErrDismissed or ErrClosed. Post must not block.
type Notifier interface {
	Post(n Notice) (<-chan error, error)
	CloseActive()
}

// Resolver is implemented by notifiers whose notices are resolved in-process.
type Resolver interface {
	Acknowledge(id string) error
	Dismiss(id string) error
}

type pending struct {
	notice Notice
	result chan error
}

// Prompt holds at most one pending notice. Frontends read it with Pending and
// resolve it with Acknowledge or Dismiss.
type Prompt struct {
	mu          sync.Mutex
	current     *pending
	unavailable bool
}

// NewPrompt creates an available prompt.
func NewPrompt() *Prompt {
	return &Prompt{}
}

// SetAvailable toggles whether Present shows notices or fails fast.
func (p *Prompt) SetAvailable(ok bool) {
	p.mu.Lock()
	p.unavailable = !ok
	p.mu.Unlock()
}

// Available reports whether notices can be shown.
func (p *Prompt) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.unavailable
}

// Post registers n as the pending notice, closing any previous one. It fails
// with ErrUnavailable when notices are switched off.
func (p *Prompt) Post(n Notice) (<-chan error, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.PostedAt.IsZero() {
		n.PostedAt = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable {
		return nil, ErrUnavailable
	}
	p.resolveLocked(ErrClosed)
	p.current = &pending{notice: n, result: make(chan error, 1)}
	return p.current.result, nil
}

// Present posts n and waits for it to resolve or for ctx to end.
func (p *Prompt) Present(ctx context.Context, n Notice) error {
	result, err := p.Post(n)
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		p.mu.Lock()
		if p.current != nil && p.current.result == result {
			p.current = nil
		}
		p.mu.Unlock()
		return ctx.Err()
	}
}

// Pending returns the notice awaiting resolution, if any.
func (p *Prompt) Pending() (Notice, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Notice{}, false
	}
	return p.current.notice, true
}

// Acknowledge confirms the pending notice. An empty id matches any notice.
func (p *Prompt) Acknowledge(id string) error {
	return p.resolve(id, nil)
}

// Dismiss rejects the pending notice. An empty id matches any notice.
func (p *Prompt) Dismiss(id string) error {
	return p.resolve(id, ErrDismissed)
}

// CloseActive closes the pending notice, if any.
func (p *Prompt) CloseActive() {
	p.mu.Lock()
	p.resolveLocked(ErrClosed)
	p.mu.Unlock()
}

func (p *Prompt) resolve(id string, result error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || (id != "" && p.current.notice.ID != id) {
		return ErrNoPending
	}
	p.resolveLocked(result)
	return nil
}

func (p *Prompt) resolveLocked(result error) {
	if p.current == nil {
		return
	}
	p.current.result <- result
	p.current = nil
}
