package sse_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/insight-stream-go/sse"
)

func TestReaderParsesEvents(t *testing.T) {
	stream := ": hello\n\n" +
		"event: meta\r\n" +
		"data: {\"a\":1}\r\n\r\n" +
		"id: 7\n" +
		"event: delta\n" +
		"data:line one\n" +
		"data: line two\n" +
		"retry: 1000\n\n" +
		"event: ping\n\n"
	r := sse.NewReader(strings.NewReader(stream))

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("first event: %v", err)
	}
	if ev.Name != "meta" || string(ev.Data) != `{"a":1}` {
		t.Fatalf("unexpected first event %+v", ev)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("second event: %v", err)
	}
	if ev.ID != "7" || ev.Name != "delta" || string(ev.Data) != "line one\nline two" {
		t.Fatalf("unexpected second event %+v", ev)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("third event: %v", err)
	}
	if ev.Name != "ping" || ev.Data != nil {
		t.Fatalf("unexpected ping event %+v", ev)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReaderTruncatedEvent(t *testing.T) {
	r := sse.NewReader(strings.NewReader("event: delta\ndata: {\"text\":"))
	if _, err := r.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	w, ok := sse.NewWriter(context.Background(), rec)
	if !ok {
		t.Fatalf("recorder should support flushing")
	}
	if err := w.WriteComment("open"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := w.WriteEvent("delta", []byte("a\nb")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !rec.Flushed {
		t.Fatalf("expected writer to flush")
	}

	ev, err := sse.NewReader(rec.Body).Next()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if ev.Name != "delta" || string(ev.Data) != "a\nb" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWriterRefusesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, _ := sse.NewWriter(ctx, httptest.NewRecorder())
	cancel()
	if err := w.WriteEvent("ping", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
