package logctx

import (
	"context"
	"log/slog"
)

type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		r.AddAttrs(slog.Group("sess",
			slog.String("client_message_id", sd.ClientMessageID),
			slog.String("user_id", sd.UserID),
			slog.String("scope", sd.Scope),
		))
	}

	if fd, ok := ctx.Value(frameDataKey{}).(*FrameData); ok {
		r.AddAttrs(slog.Group("frame",
			slog.String("event", fd.Event),
			slog.String("client_message_id", fd.ClientMessageID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs and WithGroup keep the wrapper in place so derived loggers are
// still enriched.
func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type sessionDataKey struct{}

type SessionData struct {
	ClientMessageID string
	UserID          string
	Scope           string
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}

type frameDataKey struct{}

type FrameData struct {
	Event           string
	ClientMessageID string
}

func WithFrameData(ctx context.Context, data *FrameData) context.Context {
	return context.WithValue(ctx, frameDataKey{}, data)
}

// Wrap returns l with its handler wrapped in Handler. Already wrapped loggers
// are returned unchanged.
func Wrap(l *slog.Logger) *slog.Logger {
	if _, ok := l.Handler().(Handler); ok {
		return l
	}
	return slog.New(Handler{Handler: l.Handler()})
}
