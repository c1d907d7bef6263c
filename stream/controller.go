package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/ggoodman/insight-stream-go/correlator"
	"github.com/ggoodman/insight-stream-go/correlator/memoryslot"
	"github.com/ggoodman/insight-stream-go/internal/logctx"
	"github.com/ggoodman/insight-stream-go/transport"
	"github.com/ggoodman/insight-stream-go/wire"
	"github.com/google/uuid"
)

var (
	// ErrHandlerRequired is returned by Start when OnDelta, OnDone or OnError
	// is missing.
	ErrHandlerRequired = errors.New("stream: OnDelta, OnDone and OnError handlers are required")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("stream: controller closed")
)

// Handlers receive the results of one session. OnMeta is optional.
//
// Handlers of a controller are never invoked concurrently, and for a given
// session at most one of OnDone and OnError is invoked, after which nothing
// else is. Handlers may call Start.
type Handlers struct {
	OnMeta  func(id string, meta wire.Meta)
	OnDelta func(id, text string)
	OnDone  func(id string)
	OnError func(id string, err error)
}

// Controller runs insight sessions against one endpoint. At most one of its
// sessions is current at a time; starting a session supersedes the previous
// one, whose frames are discarded from then on.
type Controller struct {
	endpoint *url.URL
	log      *slog.Logger
	scope    string
	opener   transport.Opener
	slot     correlator.Slot
	lazy     bool
	newID    func() string

	ctx    context.Context
	cancel context.CancelFunc

	// startMu orders Begin with the swap of current.
	startMu sync.Mutex
	// deliverMu serializes routing and therefore handler invocation.
	deliverMu sync.Mutex

	mu      sync.Mutex
	current *session
	live    map[string]*session
	closed  bool
}

// New constructs a Controller for the streaming endpoint at endpoint, which
// must be an absolute http or https URL. Sessions live until they finish, the
// controller is closed, or ctx is done.
func New(ctx context.Context, endpoint string, opts ...Option) (*Controller, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL %q: %w", endpoint, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("endpoint URL must use HTTP or HTTPS scheme, got %q", u.Scheme)
	}

	cfg := &config{logger: slog.Default(), scope: DefaultScope, newID: uuid.NewString}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.scope == "" {
		return nil, errors.New("scope must not be empty")
	}

	log := logctx.Wrap(cfg.logger)
	if cfg.opener == nil {
		cfg.opener = transport.NewHTTP(transport.WithLogger(log))
	}
	if cfg.slot == nil {
		cfg.slot = memoryslot.New()
	}

	cctx, cancel := context.WithCancel(ctx)
	return &Controller{
		endpoint: u,
		log:      log,
		scope:    cfg.scope,
		opener:   cfg.opener,
		slot:     cfg.slot,
		lazy:     cfg.lazy,
		newID:    cfg.newID,
		ctx:      cctx,
		cancel:   cancel,
		live:     make(map[string]*session),
	}, nil
}

// Start begins a session for prompt and returns its id at once. Results,
// including any network failure, arrive through h. The prompt is sent as
// given; rejecting blank prompts is up to the caller.
//
// Start supersedes whatever session was current. The returned error is
// non-nil only when h is incomplete, the controller is closed, or the
// correlator slot cannot be updated; no handler is invoked in those cases.
func (c *Controller) Start(prompt string, h Handlers, opts ...StartOption) (string, error) {
	if h.OnDelta == nil || h.OnDone == nil || h.OnError == nil {
		return "", ErrHandlerRequired
	}
	var sc startConfig
	for _, opt := range opts {
		opt(&sc)
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	id := c.newID()
	ctx := logctx.WithSessionData(c.ctx, &logctx.SessionData{
		ClientMessageID: id,
		UserID:          sc.userID,
		Scope:           c.scope,
	})

	if err := c.slot.Begin(ctx, id); err != nil {
		c.log.ErrorContext(ctx, "session.begin.fail", slog.String("err", err.Error()))
		return "", fmt.Errorf("begin session: %w", err)
	}

	s := &session{c: c, id: id, ctx: ctx, h: h}

	c.mu.Lock()
	prev := c.current
	c.current = s
	c.live[id] = s
	c.mu.Unlock()

	if prev != nil {
		c.log.DebugContext(ctx, "session.supersede", slog.String("prev", prev.id), slog.Bool("lazy", c.lazy))
		if !c.lazy {
			c.retire(prev)
		}
	}

	s.attach(c.opener.Open(ctx, c.target(prompt, sc.userID, id), s))
	c.log.InfoContext(ctx, "session.start")
	return id, nil
}

// State returns the current correlator state.
func (c *Controller) State(ctx context.Context) (correlator.State, error) {
	return c.slot.Snapshot(ctx)
}

// Close closes every open connection and clears the slot if it still holds
// one of this controller's sessions. No handlers are invoked. Close must not
// be called from a handler.
func (c *Controller) Close() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sessions := make([]*session, 0, len(c.live))
	for _, s := range c.live {
		sessions = append(sessions, s)
	}
	current := c.current
	c.mu.Unlock()

	for _, s := range sessions {
		s.terminated.Store(true)
		c.retire(s)
	}
	c.cancel()

	if current != nil {
		// Use a context that outlives the cancel above.
		if _, err := c.slot.Release(context.WithoutCancel(c.ctx), current.id); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}
	}
	return nil
}

func (c *Controller) target(prompt, userID, id string) *url.URL {
	u := *c.endpoint
	q := u.Query()
	q.Set(wire.ParamScope, c.scope)
	if userID != "" {
		q.Set(wire.ParamUserID, userID)
	}
	q.Set(wire.ParamClientMessageID, id)
	q.Set(wire.ParamMessage, prompt)
	u.RawQuery = q.Encode()
	return &u
}

// retire closes s's connection and forgets it.
func (c *Controller) retire(s *session) {
	c.mu.Lock()
	delete(c.live, s.id)
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
	s.close()
}

func (c *Controller) isCurrent(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == s
}
