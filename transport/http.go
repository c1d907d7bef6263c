package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/insight-stream-go/sse"
	"github.com/ggoodman/insight-stream-go/wire"
)

var eventStreamMediaType = contenttype.NewMediaType(sse.MediaType)

// Option configures an HTTP opener.
type Option func(*HTTP)

// WithHTTPClient sets the client used to issue stream requests. The client
// should not set an overall Timeout, which would cut long streams short.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *HTTP) { h.log = l }
}

// WithHeader adds a header to every stream request.
func WithHeader(key, value string) Option {
	return func(h *HTTP) { h.header.Add(key, value) }
}

// HTTP opens event streams with GET requests.
type HTTP struct {
	client *http.Client
	log    *slog.Logger
	header http.Header
}

var _ Opener = (*HTTP)(nil)

// NewHTTP returns an HTTP opener.
func NewHTTP(opts ...Option) *HTTP {
	h := &HTTP{
		client: &http.Client{},
		log:    slog.New(slog.DiscardHandler),
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open issues the request in a new goroutine and streams its frames to sink.
func (h *HTTP) Open(ctx context.Context, target *url.URL, sink Sink) Conn {
	ctx, cancel := context.WithCancel(ctx)
	c := &httpConn{cancel: cancel, done: make(chan struct{})}
	go c.run(ctx, h, target.String(), sink)
	return c
}

type httpConn struct {
	cancel context.CancelFunc
	once   sync.Once
	closed atomic.Bool
	done   chan struct{}
}

func (c *httpConn) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		c.cancel()
	})
	return nil
}

// Done is closed once the connection's goroutine has exited.
func (c *httpConn) Done() <-chan struct{} { return c.done }

func (c *httpConn) run(ctx context.Context, h *HTTP, target string, sink Sink) {
	defer close(c.done)
	defer c.Close()

	fault := func(err error) {
		if c.closed.Load() {
			h.log.DebugContext(ctx, "transport.closed", slog.String("err", err.Error()))
			return
		}
		h.log.WarnContext(ctx, "transport.fault", slog.String("err", err.Error()))
		sink.HandleFault(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		fault(fmt.Errorf("build stream request: %w", err))
		return
	}
	for k, vs := range h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", sse.MediaType)
	req.Header.Set("Cache-Control", "no-cache")

	h.log.DebugContext(ctx, "transport.open.start")
	resp, err := h.client.Do(req)
	if err != nil {
		fault(fmt.Errorf("open stream: %w", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fault(fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(raw)))
		return
	}
	mt, err := contenttype.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !mt.Matches(eventStreamMediaType) {
		fault(fmt.Errorf("%w %q", ErrUnexpectedContentType, resp.Header.Get("Content-Type")))
		return
	}
	h.log.DebugContext(ctx, "transport.open.ok")

	r := sse.NewReader(resp.Body)
	for {
		ev, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrStreamClosed
			}
			fault(fmt.Errorf("read stream: %w", err))
			return
		}
		frame, err := wire.Decode(ev.Name, ev.Data)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownEvent) {
				h.log.DebugContext(ctx, "transport.event.unknown", slog.String("event", ev.Name))
				continue
			}
			fault(err)
			return
		}
		if c.closed.Load() {
			return
		}
		sink.HandleFrame(frame)
		if c.closed.Load() {
			return
		}
	}
}
