package streamserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/insight-stream-go/internal/logctx"
	"github.com/ggoodman/insight-stream-go/sse"
	"github.com/ggoodman/insight-stream-go/wire"
	"github.com/google/uuid"
)

var (
	_ http.Handler = (*Handler)(nil)
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType(sse.MediaType)
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

// DefaultPingInterval is the heartbeat interval used when WithPingInterval is
// not given.
const DefaultPingInterval = 15 * time.Second

// writeJSONError emits a minimal JSON body for rejections made before the
// event stream starts. Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	logger       *slog.Logger
	pingInterval time.Duration
}

// WithLogger sets the logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// WithPingInterval sets how often ping frames are sent while a stream is
// open. Zero or negative disables heartbeats.
func WithPingInterval(d time.Duration) Option {
	return func(c *newConfig) { c.pingInterval = d }
}

// Handler serves insight streams produced by a Generator.
type Handler struct {
	gen          Generator
	log          *slog.Logger
	pingInterval time.Duration
}

// New constructs a Handler.
func New(gen Generator, opts ...Option) (*Handler, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	cfg := &newConfig{logger: slog.Default(), pingInterval: DefaultPingInterval}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Handler{gen: gen, log: logctx.Wrap(cfg.logger), pingInterval: cfg.pingInterval}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	h.log.InfoContext(ctx, "http.get.start")

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		h.log.WarnContext(ctx, "http.method.unsupported")
		return
	}

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		writeJSONError(w, http.StatusNotAcceptable, "client must accept text/event-stream")
		h.log.WarnContext(ctx, "http.get.unsupported_media_type")
		return
	}

	q := r.URL.Query()
	req := Request{
		ClientMessageID: q.Get(wire.ParamClientMessageID),
		Scope:           q.Get(wire.ParamScope),
		UserID:          q.Get(wire.ParamUserID),
		Message:         q.Get(wire.ParamMessage),
	}
	if req.ClientMessageID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing "+wire.ParamClientMessageID)
		h.log.WarnContext(ctx, "request.client_message_id.missing")
		return
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "missing "+wire.ParamMessage)
		h.log.WarnContext(ctx, "request.message.missing")
		return
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		ClientMessageID: req.ClientMessageID,
		UserID:          req.UserID,
		Scope:           req.Scope,
	})

	sw, ok := sse.NewWriter(ctx, w)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}
	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if h.pingInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.heartbeat(ctx, sw)
		}()
	}

	em := &emitter{id: req.ClientMessageID, w: sw}
	err := h.gen.Generate(ctx, req, em)
	if err == nil {
		err = em.done()
	}
	if err != nil {
		if ctx.Err() != nil {
			h.log.InfoContext(ctx, "http.get.client_gone", slog.Duration("dur", time.Since(start)))
			return
		}
		h.log.WarnContext(ctx, "generate.fail", slog.String("err", err.Error()))
		if werr := em.fail(err); werr != nil {
			h.log.WarnContext(ctx, "sse.write.fail", slog.String("err", werr.Error()))
		}
		return
	}
	h.log.InfoContext(ctx, "http.get.ok", slog.Int("deltas", em.deltas), slog.Duration("dur", time.Since(start)))
}

func (h *Handler) heartbeat(ctx context.Context, sw *sse.Writer) {
	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := sw.WriteEvent(wire.EventPing, nil); err != nil {
				return
			}
		}
	}
}

var errMetaSent = errors.New("meta frame already sent")

type emitter struct {
	id     string
	w      *sse.Writer
	mu     sync.Mutex
	meta   bool
	deltas int
}

func (e *emitter) Meta(fields map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.meta {
		return errMetaSent
	}
	return e.writeMeta(fields)
}

func (e *emitter) Delta(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.meta {
		if err := e.writeMeta(nil); err != nil {
			return err
		}
	}
	e.deltas++
	return e.write(wire.Delta{ClientMessageID: e.id, Text: text})
}

func (e *emitter) done() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.meta {
		if err := e.writeMeta(nil); err != nil {
			return err
		}
	}
	return e.write(wire.Done{ClientMessageID: e.id})
}

func (e *emitter) fail(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	frame := &wire.Error{ClientMessageID: e.id, Code: "generation_failed", Message: err.Error()}
	var we *wire.Error
	if errors.As(err, &we) {
		frame.Code = we.Code
		frame.Message = we.Message
	}
	return e.write(frame)
}

// writeMeta is called with mu held.
func (e *emitter) writeMeta(fields map[string]any) error {
	raw := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if k == wire.ParamClientMessageID {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("meta field %q: %w", k, err)
		}
		raw[k] = b
	}
	e.meta = true
	return e.write(wire.Meta{ClientMessageID: e.id, Fields: raw})
}

func (e *emitter) write(f wire.Frame) error {
	event, data, err := wire.Encode(f)
	if err != nil {
		return err
	}
	return e.w.WriteEvent(event, data)
}
