// Package pipe provides an in-memory transport.Opener. Tests push frames and
// faults into a connection directly; they are delivered synchronously on the
// calling goroutine.
package pipe

import (
	"context"
	"net/url"
	"sync"

	"github.com/ggoodman/insight-stream-go/transport"
	"github.com/ggoodman/insight-stream-go/wire"
)

var _ transport.Opener = (*Opener)(nil)

// Opener records every connection it opens.
type Opener struct {
	mu    sync.Mutex
	conns []*Conn
}

func New() *Opener {
	return &Opener{}
}

func (o *Opener) Open(ctx context.Context, target *url.URL, sink transport.Sink) transport.Conn {
	c := &Conn{target: target, sink: sink}
	o.mu.Lock()
	o.conns = append(o.conns, c)
	o.mu.Unlock()
	return c
}

// Conns returns the connections opened so far, oldest first.
func (o *Opener) Conns() []*Conn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Conn(nil), o.conns...)
}

// Last returns the most recently opened connection, or nil.
func (o *Opener) Last() *Conn {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.conns) == 0 {
		return nil
	}
	return o.conns[len(o.conns)-1]
}

// Conn is one in-memory connection.
type Conn struct {
	target *url.URL
	sink   transport.Sink

	mu         sync.Mutex
	closed     bool
	failed     bool
	closeCalls int
}

// Target returns the URL the connection was opened for.
func (c *Conn) Target() *url.URL { return c.target }

// Send delivers f to the sink. It reports false, delivering nothing, once the
// connection is closed or has faulted.
func (c *Conn) Send(f wire.Frame) bool {
	if !c.live() {
		return false
	}
	c.sink.HandleFrame(f)
	return true
}

// Inject delivers f even if the connection is closed, as happens when a frame
// was already in flight when Close was called.
func (c *Conn) Inject(f wire.Frame) {
	c.sink.HandleFrame(f)
}

// Fail delivers a fault. Like a real connection, a failed connection delivers
// nothing afterwards.
func (c *Conn) Fail(err error) bool {
	c.mu.Lock()
	if c.closed || c.failed {
		c.mu.Unlock()
		return false
	}
	c.failed = true
	c.mu.Unlock()
	c.sink.HandleFault(err)
	return true
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCalls++
	return nil
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCalls reports how many times Close has been called.
func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

func (c *Conn) live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.failed
}
