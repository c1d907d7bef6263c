package stream

import (
	"log/slog"
	"strings"

	"github.com/ggoodman/insight-stream-go/correlator"
	"github.com/ggoodman/insight-stream-go/transport"
)

// DefaultScope is the scope identifier sent when WithScope is not used.
const DefaultScope = "insight"

// Option configures a Controller.
type Option func(*config)

type config struct {
	logger *slog.Logger
	scope  string
	opener transport.Opener
	slot   correlator.Slot
	lazy   bool
	newID  func() string
}

// WithLogger sets the logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithScope sets the fixed scope identifier carried on every request.
func WithScope(scope string) Option {
	return func(c *config) { c.scope = strings.TrimSpace(scope) }
}

// WithTransport sets the opener used for stream connections. Defaults to an
// HTTP opener sharing the controller's logger.
func WithTransport(o transport.Opener) Option {
	return func(c *config) { c.opener = o }
}

// WithSlot sets the correlator slot. Defaults to a fresh in-memory slot, so
// controllers are independent unless they are given the same slot.
func WithSlot(s correlator.Slot) Option {
	return func(c *config) { c.slot = s }
}

// WithLazySupersession leaves a superseded session's connection open until it
// ends on its own. By default Start closes it immediately.
func WithLazySupersession() Option {
	return func(c *config) { c.lazy = true }
}

// WithIDGenerator replaces the session id source. Ids must never repeat.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) { c.newID = fn }
}

// StartOption configures a single Start call.
type StartOption func(*startConfig)

type startConfig struct {
	userID string
}

// WithUserID attaches a caller identifier to the request.
func WithUserID(id string) StartOption {
	return func(c *startConfig) { c.userID = id }
}
