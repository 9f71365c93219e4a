package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// present runs Present in a goroutine and waits until the notice is pending.
func present(t *testing.T, ctx context.Context, p *Prompt, n Notice) (<-chan error, Notice) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Present(ctx, n) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := p.Pending(); ok && got.Message == n.Message {
			return done, got
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("notice never became pending")
	return nil, Notice{}
}

func result(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Present did not return")
	}
	return nil
}

func TestAcknowledge(t *testing.T) {
	p := NewPrompt()
	done, n := present(t, context.Background(), p, Notice{Message: "take a break"})

	assert.NotEmpty(t, n.ID)
	assert.False(t, n.PostedAt.IsZero())
	require.NoError(t, p.Acknowledge(n.ID))
	assert.NoError(t, result(t, done))

	_, ok := p.Pending()
	assert.False(t, ok)
}

func TestDismiss(t *testing.T) {
	p := NewPrompt()
	done, _ := present(t, context.Background(), p, Notice{Message: "work"})

	require.NoError(t, p.Dismiss(""))
	assert.ErrorIs(t, result(t, done), ErrDismissed)
}

func TestResolveWrongID(t *testing.T) {
	p := NewPrompt()
	assert.ErrorIs(t, p.Acknowledge("nope"), ErrNoPending)

	done, _ := present(t, context.Background(), p, Notice{Message: "work"})
	assert.ErrorIs(t, p.Acknowledge("nope"), ErrNoPending)

	p.CloseActive()
	assert.ErrorIs(t, result(t, done), ErrClosed)
}

func TestNewNoticeClosesPrevious(t *testing.T) {
	p := NewPrompt()
	first, _ := present(t, context.Background(), p, Notice{Message: "one"})
	second, n := present(t, context.Background(), p, Notice{Message: "two"})

	assert.ErrorIs(t, result(t, first), ErrClosed)
	require.NoError(t, p.Acknowledge(n.ID))
	assert.NoError(t, result(t, second))
}

func TestUnavailable(t *testing.T) {
	p := NewPrompt()
	p.SetAvailable(false)
	assert.False(t, p.Available())

	err := p.Present(context.Background(), Notice{Message: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, ok := p.Pending()
	assert.False(t, ok)
}

func TestContextCancelClearsPending(t *testing.T) {
	p := NewPrompt()
	ctx, cancel := context.WithCancel(context.Background())
	done, _ := present(t, ctx, p, Notice{Message: "x"})

	cancel()
	assert.ErrorIs(t, result(t, done), context.Canceled)
	_, ok := p.Pending()
	assert.False(t, ok)
}

func TestCloseActiveWhenIdle(t *testing.T) {
	p := NewPrompt()
	p.CloseActive()
	_, ok := p.Pending()
	assert.False(t, ok)
}
