// Package sse reads and writes text/event-stream framing.
package sse

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MediaType is the content type of an event stream.
const MediaType = "text/event-stream"

// Event is one dispatched server-sent event.
type Event struct {
	ID   string
	Name string
	Data []byte
}

// Reader decodes events from a stream. It is not safe for concurrent use.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next blocks until a complete event has been read. Comment lines and
// blank-line runs without fields are skipped. It returns io.EOF when the
// stream ends cleanly between events and io.ErrUnexpectedEOF when it ends
// part way through one.
func (r *Reader) Next() (Event, error) {
	var ev Event
	var data []byte
	var sawField, sawData bool
	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && (sawField || line != "") {
				return Event{}, io.ErrUnexpectedEOF
			}
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !sawField {
				continue
			}
			if sawData {
				ev.Data = data
			}
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		name, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch name {
		case "event":
			ev.Name = value
		case "data":
			if sawData {
				data = append(data, '\n')
			}
			data = append(data, value...)
			sawData = true
		case "id":
			ev.ID = value
		default:
			// retry and unknown fields are ignored.
			continue
		}
		sawField = true
	}
}

// Writer encodes events onto an http.ResponseWriter, flushing after each one.
// Writes are serialized and refused once ctx is done.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	f   http.Flusher
	ctx context.Context
}

// NewWriter wraps w. It returns false when w cannot flush.
func NewWriter(ctx context.Context, w http.ResponseWriter) (*Writer, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &Writer{w: w, f: f, ctx: ctx}, true
}

// WriteEvent writes a single named event. Multi-line data is split across
// data fields. An empty name omits the event field.
func (w *Writer) WriteEvent(name string, data []byte) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "event: %s\n", name)
	}
	for _, line := range strings.Split(string(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	w.f.Flush()
	return nil
}

// WriteComment writes a comment line. Clients ignore comments; they are useful
// to flush headers early.
func (w *Writer) WriteComment(text string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("failed to write SSE comment: %w", err)
	}
	w.f.Flush()
	return nil
}
