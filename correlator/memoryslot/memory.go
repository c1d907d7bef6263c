// Package memoryslot implements correlator.Slot in process memory.
package memoryslot

import (
	"context"
	"sync"

	"github.com/ggoodman/insight-stream-go/correlator"
)

var _ correlator.Slot = (*Slot)(nil)

// Slot is a mutex-guarded correlator.Slot. The zero value is ready to use.
type Slot struct {
	mu    sync.Mutex
	state correlator.State
}

func New() *Slot {
	return &Slot{}
}

func (s *Slot) Begin(ctx context.Context, id string) error {
	if id == "" {
		return correlator.ErrEmptyID
	}
	s.mu.Lock()
	s.state = correlator.State{ActiveID: id, Connecting: true}
	s.mu.Unlock()
	return nil
}

func (s *Slot) IsActive(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != "" && s.state.ActiveID == id, nil
}

func (s *Slot) MarkStreaming(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || s.state.ActiveID != id {
		return false, nil
	}
	s.state.Connecting = false
	return true, nil
}

func (s *Slot) Release(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || s.state.ActiveID != id {
		return false, nil
	}
	s.state = correlator.State{}
	return true, nil
}

func (s *Slot) Snapshot(ctx context.Context) (correlator.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}
