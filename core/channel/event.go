package channel

import (
	"encoding/json"
	"fmt"

	"github.com/leofalp/explainer/core/classify"
)

// EventType tags non-error events. Error events carry no type.
type EventType string

const (
	EventChunk EventType = "CHUNK"
	EventDone  EventType = "DONE"
)

// Event is one orchestrator → surface message:
//
//	{"type":"CHUNK","content":"..."}
//	{"type":"DONE"}
//	{"error":"..."} or {"error":{...}}
type Event struct {
	Type    EventType       `json:"type,omitempty"`
	Content string          `json:"content,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func ChunkEvent(content string) Event {
	return Event{Type: EventChunk, Content: content}
}

func DoneEvent() Event {
	return Event{Type: EventDone}
}

// ErrorEvent carries detail, a string or any JSON-serializable object.
func ErrorEvent(detail any) Event {
	if detail == nil {
		detail = classify.Classify(nil)
	}
	data, err := json.Marshal(detail)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(detail))
	}
	return Event{Error: data}
}

// IsError reports whether e is an error event.
func (e Event) IsError() bool {
	return len(e.Error) > 0
}

// IsTerminal reports whether e ends the event sequence.
func (e Event) IsTerminal() bool {
	return e.IsError() || e.Type == EventDone
}

// DecodeEvent parses and validates one wire event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("malformed event: %w", err)
	}
	if event.IsError() {
		return event, nil
	}
	switch event.Type {
	case EventChunk, EventDone:
		return event, nil
	default:
		return Event{}, fmt.Errorf("unknown event type %q", event.Type)
	}
}
