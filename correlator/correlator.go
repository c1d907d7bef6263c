package correlator

import (
	"context"
	"errors"
)

// ErrEmptyID is returned when an operation is given an empty session id.
var ErrEmptyID = errors.New("correlator: empty session id")

// State is a snapshot of a slot. An empty ActiveID means no session is
// current.
type State struct {
	ActiveID   string
	Connecting bool
}

// Slot holds the one session currently allowed to deliver results.
//
// Begin overwrites the slot unconditionally; this is how a newer session
// cancels an older one. Every other mutation is conditional on the caller's id
// still being active, so a superseded session can never disturb its
// successor.
type Slot interface {
	// Begin makes id the active session and marks it connecting.
	Begin(ctx context.Context, id string) error
	// IsActive reports whether id is the active session.
	IsActive(ctx context.Context, id string) (bool, error)
	// MarkStreaming clears the connecting flag if id is active. It reports
	// whether id was active.
	MarkStreaming(ctx context.Context, id string) (bool, error)
	// Release resets the slot to empty if id is active. It reports whether
	// it did so; exactly one caller can win for a given session.
	Release(ctx context.Context, id string) (bool, error)
	// Snapshot returns the current state.
	Snapshot(ctx context.Context) (State, error)
}
