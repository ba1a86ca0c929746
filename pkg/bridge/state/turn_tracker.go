// Package state provides turn lifecycle tracking for the bridge server.
package state

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TurnState represents the state of a turn.
type TurnState int

const (
	TurnStateIdle TurnState = iota
	TurnStateGenerating
	TurnStateCompleted
	TurnStateSuperseded
	TurnStateFailed
)

// String returns the string representation of TurnState.
func (s TurnState) String() string {
	switch s {
	case TurnStateIdle:
		return "idle"
	case TurnStateGenerating:
		return "generating"
	case TurnStateSuperseded:
		return "superseded"
	case TurnStateFailed:
		return "failed"
	default:
		return "completed"
	}
}

// Errors for turn tracker operations.
var (
	ErrNoActiveTurn           = errors.New("no active turn")
	ErrStaleTurn              = errors.New("turn superseded by a newer response id")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// TurnContext holds the context for an active turn.
type TurnContext struct {
	ResponseID int
	State      TurnState
	StartTime  time.Time

	cancel context.CancelFunc
}

// TurnTracker tracks which response id is currently being generated.
//
// The platform numbers turn requests with monotonically increasing
// response ids. Activating a higher id supersedes and cancels the turn
// in flight; a lower id is stale on arrival and never activates.
type TurnTracker struct {
	mu      sync.RWMutex
	current *TurnContext
}

// NewTurnTracker creates a new TurnTracker.
func NewTurnTracker() *TurnTracker {
	return &TurnTracker{}
}

// Activate makes responseID the active turn, superseding and cancelling
// any turn still generating. The cancel func is invoked when this turn
// is itself superseded or the tracker shuts down.
func (tt *TurnTracker) Activate(responseID int, cancel context.CancelFunc) error {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if tt.current != nil && responseID < tt.current.ResponseID {
		return ErrStaleTurn
	}

	if tt.current != nil && tt.current.State == TurnStateGenerating {
		tt.current.State = TurnStateSuperseded
		if tt.current.cancel != nil {
			tt.current.cancel()
		}
	}

	tt.current = &TurnContext{
		ResponseID: responseID,
		State:      TurnStateGenerating,
		StartTime:  time.Now(),
		cancel:     cancel,
	}
	return nil
}

// IsActive reports whether responseID is still the turn being streamed.
func (tt *TurnTracker) IsActive(responseID int) bool {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	return tt.current != nil &&
		tt.current.ResponseID == responseID &&
		tt.current.State == TurnStateGenerating
}

// ActiveID returns the response id of the active turn.
func (tt *TurnTracker) ActiveID() (int, error) {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	if tt.current == nil {
		return 0, ErrNoActiveTurn
	}
	return tt.current.ResponseID, nil
}

// Complete marks responseID finished. Completing a turn that was
// superseded in the meantime reports ErrStaleTurn so the caller can
// tell a clean finish from an interrupted one.
func (tt *TurnTracker) Complete(responseID int) error {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if tt.current == nil {
		return ErrNoActiveTurn
	}
	if tt.current.ResponseID != responseID {
		return ErrStaleTurn
	}
	if tt.current.State != TurnStateGenerating {
		if tt.current.State == TurnStateSuperseded {
			return ErrStaleTurn
		}
		return ErrInvalidStateTransition
	}

	tt.current.State = TurnStateCompleted
	if tt.current.cancel != nil {
		tt.current.cancel()
		tt.current.cancel = nil
	}
	return nil
}

// Fail marks responseID failed. Stale failures report ErrStaleTurn.
func (tt *TurnTracker) Fail(responseID int) error {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if tt.current == nil {
		return ErrNoActiveTurn
	}
	if tt.current.ResponseID != responseID || tt.current.State != TurnStateGenerating {
		return ErrStaleTurn
	}

	tt.current.State = TurnStateFailed
	if tt.current.cancel != nil {
		tt.current.cancel()
		tt.current.cancel = nil
	}
	return nil
}

// Shutdown cancels whatever turn is in flight. Used at session teardown.
func (tt *TurnTracker) Shutdown() {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if tt.current != nil && tt.current.State == TurnStateGenerating {
		tt.current.State = TurnStateSuperseded
		if tt.current.cancel != nil {
			tt.current.cancel()
			tt.current.cancel = nil
		}
	}
}

// Current returns a copy of the current turn context.
func (tt *TurnTracker) Current() (*TurnContext, error) {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	if tt.current == nil {
		return nil, ErrNoActiveTurn
	}
	ctx := *tt.current
	ctx.cancel = nil
	return &ctx, nil
}
