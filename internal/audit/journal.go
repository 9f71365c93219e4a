// Package audit records committed phase changes for pomo.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/pomo/internal/models"
)

// TransitionWriter persists journal entries. *store.Store satisfies it.
type TransitionWriter interface {
	WriteTransition(ctx context.Context, entry models.TransitionEntry) (*models.TransitionEntry, error)
}

// Journal writes a record for every transition that changes phase.
type Journal struct {
	w TransitionWriter
}

// NewJournal creates a new transition journal.
func NewJournal(w TransitionWriter) *Journal {
	return &Journal{w: w}
}

// inputs is what the hash covers: enough to replay the decision.
type inputs struct {
	Event    models.Event        `json:"event"`
	State    models.MachineState `json:"state"`
	Settings models.Settings     `json:"settings"`
}

// Record journals a transition from prev under settings. Transitions that keep
// the phase (ticks, no-ops) are skipped and return nil, nil.
func (j *Journal) Record(ctx context.Context, event models.Event, prev, next models.MachineState, settings models.Settings) (*models.TransitionEntry, error) {
	if prev.Phase == next.Phase {
		return nil, nil
	}
	return j.w.WriteTransition(ctx, models.TransitionEntry{
		Event:      event,
		From:       prev.Phase,
		To:         next.Phase,
		Remaining:  next.RemainingSeconds,
		InputsHash: hashInputs(inputs{Event: event, State: prev, Settings: settings}),
	})
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
