package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/insight-stream-go/internal/logctx"
	"github.com/ggoodman/insight-stream-go/transport"
	"github.com/ggoodman/insight-stream-go/wire"
)

// session is the transport.Sink for one Start call.
type session struct {
	c   *Controller
	id  string
	ctx context.Context

	// h and streaming are only touched under c.deliverMu.
	h         Handlers
	streaming bool

	terminated atomic.Bool

	mu      sync.Mutex
	conn    transport.Conn
	closing bool
}

var _ transport.Sink = (*session)(nil)

func (s *session) HandleFrame(f wire.Frame) { s.c.route(s, f) }

func (s *session) HandleFault(err error) { s.c.fault(s, err) }

func (s *session) attach(conn transport.Conn) {
	s.mu.Lock()
	s.conn = conn
	closeNow := s.closing
	s.mu.Unlock()
	if closeNow {
		_ = conn.Close()
	}
}

func (s *session) close() {
	s.mu.Lock()
	s.closing = true
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// route applies the acceptance rule: a frame reaches the handlers only if it
// is tagged with this connection's session id and that id is the slot's
// active id.
func (c *Controller) route(s *session, f wire.Frame) {
	if _, ok := f.(wire.Ping); ok {
		return
	}

	ctx := logctx.WithFrameData(s.ctx, &logctx.FrameData{Event: f.Event(), ClientMessageID: f.SessionID()})

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	if s.terminated.Load() {
		c.log.DebugContext(ctx, "frame.after_terminal")
		return
	}

	if e, ok := f.(*wire.Error); ok {
		if e.ClientMessageID != "" && e.ClientMessageID != s.id {
			c.log.DebugContext(ctx, "frame.error.foreign")
			return
		}
		c.terminate(ctx, s, e)
		return
	}

	if f.SessionID() != s.id {
		c.log.DebugContext(ctx, "frame."+f.Event()+".foreign")
		return
	}

	switch fr := f.(type) {
	case wire.Meta:
		ok, err := c.slot.MarkStreaming(ctx, s.id)
		if err != nil {
			c.terminate(ctx, s, fmt.Errorf("correlator: %w", err))
			return
		}
		if !ok {
			c.log.DebugContext(ctx, "frame.meta.stale")
			return
		}
		s.streaming = true
		if s.h.OnMeta != nil {
			s.h.OnMeta(s.id, fr)
		}

	case wire.Delta:
		var ok bool
		var err error
		if s.streaming {
			ok, err = c.slot.IsActive(ctx, s.id)
		} else {
			// A server may omit meta; the first delta then ends connecting.
			ok, err = c.slot.MarkStreaming(ctx, s.id)
		}
		if err != nil {
			c.terminate(ctx, s, fmt.Errorf("correlator: %w", err))
			return
		}
		if !ok {
			c.log.DebugContext(ctx, "frame.delta.stale")
			return
		}
		s.streaming = true
		s.h.OnDelta(s.id, fr.Text)

	case wire.Done:
		// The connection is finished whether or not the session still owns
		// the slot.
		s.terminated.Store(true)
		ok, err := c.slot.Release(ctx, s.id)
		if err != nil {
			c.log.ErrorContext(ctx, "session.release.fail", slog.String("err", err.Error()))
			ok = c.isCurrent(s)
		}
		c.retire(s)
		if !ok {
			c.log.DebugContext(ctx, "frame.done.stale")
			s.h = Handlers{}
			return
		}
		c.log.InfoContext(ctx, "session.done")
		h := s.h
		s.h = Handlers{}
		h.OnDone(s.id)
	}
}

func (c *Controller) fault(s *session, err error) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if s.terminated.Load() {
		return
	}
	c.terminate(s.ctx, s, err)
}

// terminate ends s with err. Only a session still owning the slot reports
// the error; for a superseded one it is swallowed. Called with deliverMu held.
func (c *Controller) terminate(ctx context.Context, s *session, err error) {
	s.terminated.Store(true)
	owned, rerr := c.slot.Release(ctx, s.id)
	if rerr != nil {
		c.log.ErrorContext(ctx, "session.release.fail", slog.String("err", rerr.Error()))
		owned = c.isCurrent(s)
	}
	c.retire(s)

	h := s.h
	s.h = Handlers{}
	if !owned {
		c.log.DebugContext(ctx, "session.error.swallowed", slog.String("err", err.Error()))
		return
	}
	c.log.WarnContext(ctx, "session.error", slog.String("err", err.Error()))
	h.OnError(s.id, err)
}
