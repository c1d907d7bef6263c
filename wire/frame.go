// Package wire defines the frames exchanged on an insight stream and their
// JSON encoding inside text/event-stream events.
//
// Every named server event decodes into exactly one Frame variant. Callers
// switch on the concrete type rather than on event names:
//
//	switch f := frame.(type) {
//	case wire.Meta:
//	case wire.Delta:
//	case wire.Done:
//	case *wire.Error:
//	case wire.Ping:
//	}
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event names used on the wire.
const (
	EventMeta  = "meta"
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
	EventPing  = "ping"
)

var (
	// ErrMalformedFrame is wrapped by Decode when a payload cannot be decoded.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownEvent is returned by Decode for event names outside the protocol.
	ErrUnknownEvent = errors.New("unknown event")
)

// Frame is one decoded server event.
type Frame interface {
	// Event returns the wire event name of the frame.
	Event() string
	// SessionID returns the clientMessageId the frame is tagged with. Ping
	// frames, and error frames that carry no id, return "".
	SessionID() string

	frame()
}

// Meta is the first frame of a session and carries server-decided metadata
// such as routing information.
type Meta struct {
	ClientMessageID string
	// Fields holds every payload member other than clientMessageId.
	Fields map[string]json.RawMessage
}

// Delta carries one incremental text fragment.
type Delta struct {
	ClientMessageID string `json:"clientMessageId"`
	Text            string `json:"text"`
}

// Done signals successful completion of a session.
type Done struct {
	ClientMessageID string `json:"clientMessageId"`
}

// Ping is a heartbeat. It has no session affiliation.
type Ping struct{}

// Error is a server-reported failure. It doubles as the error value handed to
// callers.
type Error struct {
	ClientMessageID string `json:"clientMessageId,omitempty"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

func (Meta) Event() string   { return EventMeta }
func (Delta) Event() string  { return EventDelta }
func (Done) Event() string   { return EventDone }
func (Ping) Event() string   { return EventPing }
func (*Error) Event() string { return EventError }

func (m Meta) SessionID() string   { return m.ClientMessageID }
func (d Delta) SessionID() string  { return d.ClientMessageID }
func (d Done) SessionID() string   { return d.ClientMessageID }
func (Ping) SessionID() string     { return "" }
func (e *Error) SessionID() string { return e.ClientMessageID }

func (Meta) frame()   {}
func (Delta) frame()  {}
func (Done) frame()   {}
func (Ping) frame()   {}
func (*Error) frame() {}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "server reported an error"
	}
	if e.Code != "" {
		return fmt.Sprintf("stream error %s: %s", e.Code, msg)
	}
	return "stream error: " + msg
}

// Field decodes the named metadata member into v. It reports false when the
// member is absent.
func (m Meta) Field(name string, v any) (bool, error) {
	raw, ok := m.Fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("meta field %q: %w", name, err)
	}
	return true, nil
}

// MarshalJSON flattens Fields alongside clientMessageId.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Fields)+1)
	for k, v := range m.Fields {
		out[k] = v
	}
	id, err := json.Marshal(m.ClientMessageID)
	if err != nil {
		return nil, err
	}
	out["clientMessageId"] = id
	return json.Marshal(out)
}

// UnmarshalJSON splits clientMessageId from the remaining members.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, ok := fields["clientMessageId"]
	if !ok {
		return errors.New("missing clientMessageId")
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return fmt.Errorf("clientMessageId: %w", err)
	}
	delete(fields, "clientMessageId")
	m.ClientMessageID = id
	m.Fields = fields
	return nil
}

// Decode turns one named event and its data into a Frame.
//
// An error event whose data is not a JSON object is kept as a plain message,
// and an error event with no data at all still decodes successfully.
func Decode(event string, data []byte) (Frame, error) {
	switch event {
	case EventPing:
		return Ping{}, nil
	case EventMeta:
		var m Meta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: meta: %v", ErrMalformedFrame, err)
		}
		return m, nil
	case EventDelta:
		var d Delta
		if err := decodeTagged(data, &d, &d.ClientMessageID); err != nil {
			return nil, fmt.Errorf("%w: delta: %v", ErrMalformedFrame, err)
		}
		return d, nil
	case EventDone:
		var d Done
		if err := decodeTagged(data, &d, &d.ClientMessageID); err != nil {
			return nil, fmt.Errorf("%w: done: %v", ErrMalformedFrame, err)
		}
		return d, nil
	case EventError:
		return decodeError(data), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

func decodeTagged(data []byte, v any, id *string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("missing clientMessageId")
	}
	return nil
}

func decodeError(data []byte) *Error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var e Error
		if err := json.Unmarshal(data, &e); err == nil {
			if e.Message == "" {
				// Some backends use "error" rather than "message".
				var alt struct {
					Error string `json:"error"`
				}
				if json.Unmarshal(data, &alt) == nil {
					e.Message = alt.Error
				}
			}
			return &e
		}
	}
	if s, err := unquote(trimmed); err == nil {
		trimmed = s
	}
	return &Error{Message: trimmed}
}

func unquote(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", errors.New("not a JSON string")
	}
	var out string
	err := json.Unmarshal([]byte(s), &out)
	return out, err
}

// Encode renders a Frame as its event name and JSON payload. Ping encodes
// with empty data.
func Encode(f Frame) (string, []byte, error) {
	if _, ok := f.(Ping); ok {
		return EventPing, nil, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s frame: %w", f.Event(), err)
	}
	return f.Event(), data, nil
}
