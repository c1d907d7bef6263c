package streamserver

import (
	"context"
	"strings"
	"time"
)

// Request describes one stream request as received from a client.
type Request struct {
	ClientMessageID string
	Scope           string
	UserID          string
	Message         string
}

// Emitter writes frames for the request being served.
type Emitter interface {
	// Meta sends the meta frame. It may be called at most once and only
	// before the first Delta; if it is not called, an empty meta frame is
	// sent ahead of the first delta or the done frame.
	Meta(fields map[string]any) error
	// Delta sends one text fragment.
	Delta(text string) error
}

// Generator produces an answer. Returning nil ends the stream with a done
// frame; returning an error ends it with an error frame. A *wire.Error keeps
// its code and message.
type Generator interface {
	Generate(ctx context.Context, req Request, emit Emitter) error
}

// GeneratorFunc adapts a function to a Generator.
type GeneratorFunc func(ctx context.Context, req Request, emit Emitter) error

func (f GeneratorFunc) Generate(ctx context.Context, req Request, emit Emitter) error {
	return f(ctx, req, emit)
}

// Static streams text word by word, pausing delay between words. Its meta
// frame reports the route "static".
func Static(text string, delay time.Duration) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request, emit Emitter) error {
		if err := emit.Meta(map[string]any{"route": "static"}); err != nil {
			return err
		}
		words := strings.SplitAfter(text, " ")
		for i, word := range words {
			if i > 0 && delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			if word == "" {
				continue
			}
			if err := emit.Delta(word); err != nil {
				return err
			}
		}
		return nil
	})
}
