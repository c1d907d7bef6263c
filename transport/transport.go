// Package transport opens the long-lived event streams that insight sessions
// are delivered over.
//
// A transport owns exactly one connection per Open call and knows nothing
// about which session is current; it only decodes frames and reports them,
// in wire order, to a Sink. Correlation belongs to the caller.
package transport

import (
	"context"
	"errors"
	"net/url"

	"github.com/ggoodman/insight-stream-go/wire"
)

var (
	// ErrUnexpectedStatus is wrapped in faults for non-200 responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrUnexpectedContentType is wrapped in faults for responses that are not
	// event streams.
	ErrUnexpectedContentType = errors.New("unexpected response content type")
	// ErrStreamClosed is wrapped in faults when the server ends the stream.
	ErrStreamClosed = errors.New("stream closed by server")
)

// Sink receives the output of one connection. Calls for a given connection
// are made from a single goroutine and never overlap.
type Sink interface {
	// HandleFrame receives each decoded frame.
	HandleFrame(f wire.Frame)
	// HandleFault is called at most once, when the connection fails. No
	// further calls follow it.
	HandleFault(err error)
}

// Conn is an open connection.
type Conn interface {
	// Close releases the connection. It is idempotent and always returns
	// nil; once it returns, the Sink receives no further calls except one
	// that was already in progress.
	Close() error
}

// Opener opens connections. Open must not block on the network: it returns
// at once and the connection is established in the background, with any
// failure reported through the Sink.
type Opener interface {
	Open(ctx context.Context, target *url.URL, sink Sink) Conn
}

// SinkFuncs adapts a pair of functions to a Sink. Nil functions are skipped.
type SinkFuncs struct {
	Frame func(wire.Frame)
	Fault func(error)
}

func (s SinkFuncs) HandleFrame(f wire.Frame) {
	if s.Frame != nil {
		s.Frame(f)
	}
}

func (s SinkFuncs) HandleFault(err error) {
	if s.Fault != nil {
		s.Fault(err)
	}
}
