package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := Wrap(slog.New(slog.NewJSONHandler(&buf, nil))).With(slog.String("component", "test"))

	ctx := WithSessionData(context.Background(), &SessionData{ClientMessageID: "abc", Scope: "insight"})
	ctx = WithFrameData(ctx, &FrameData{Event: "delta", ClientMessageID: "abc"})
	log.InfoContext(ctx, "frame.delta")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["component"] != "test" {
		t.Fatalf("derived attrs lost: %v", rec)
	}
	sess, ok := rec["sess"].(map[string]any)
	if !ok || sess["client_message_id"] != "abc" || sess["scope"] != "insight" {
		t.Fatalf("missing sess group: %v", rec)
	}
	frame, ok := rec["frame"].(map[string]any)
	if !ok || frame["event"] != "delta" {
		t.Fatalf("missing frame group: %v", rec)
	}
	if _, ok := rec["req"]; ok {
		t.Fatalf("unexpected req group: %v", rec)
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	l := Wrap(slog.New(slog.DiscardHandler))
	if Wrap(l) != l {
		t.Fatalf("wrapping twice should return the same logger")
	}
}
