package transport

import (
	"sync"

	"github.com/ggoodman/insight-stream-go/wire"
)

// Mux is a Sink that routes frames to callbacks registered per event name.
// Frames with no registered callback are dropped.
type Mux struct {
	mu      sync.RWMutex
	byEvent map[string]func(wire.Frame)
	fault   func(error)
}

var _ Sink = (*Mux)(nil)

func NewMux() *Mux {
	return &Mux{byEvent: make(map[string]func(wire.Frame))}
}

// On registers fn for event, replacing any earlier registration.
func (m *Mux) On(event string, fn func(wire.Frame)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEvent[event] = fn
}

// OnFault registers the fault callback.
func (m *Mux) OnFault(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

func (m *Mux) HandleFrame(f wire.Frame) {
	m.mu.RLock()
	fn := m.byEvent[f.Event()]
	m.mu.RUnlock()
	if fn != nil {
		fn(f)
	}
}

func (m *Mux) HandleFault(err error) {
	m.mu.RLock()
	fn := m.fault
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
