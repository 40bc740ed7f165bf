package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EventType tags a real-time message.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventPong            EventType = "pong"
	EventFileUpdated     EventType = "file_updated"
	EventTerminalOutput  EventType = "terminal_output"
	EventTerminalUpdated EventType = "terminal_updated"
	EventLogCreated      EventType = "log_created"
	EventTaskUpdated     EventType = "task_updated"
	EventWorkflowUpdated EventType = "workflow_updated"
	EventSecretUpdated   EventType = "secret_updated"
	EventProjectUpdated  EventType = "project_updated"
)

// InboundPing is the only inbound message type the server reacts to.
const InboundPing = "ping"

// Valid reports whether t is a known event kind.
func (t EventType) Valid() bool {
	switch t {
	case EventConnected, EventPong, EventFileUpdated, EventTerminalOutput, EventTerminalUpdated,
		EventLogCreated, EventTaskUpdated, EventWorkflowUpdated, EventSecretUpdated, EventProjectUpdated:
		return true
	}
	return false
}

// Event is a real-time notification. Events can only be built through the
// constructors below, which fix the payload shape of every kind.
type Event struct {
	data any
	kind EventType
}

// ConnectedPayload greets a freshly opened connection.
type ConnectedPayload struct {
	ClientID string `json:"clientId"`
}

// DeletedPayload announces the removal of an entity.
type DeletedPayload struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// FilePayload announces a change to a workspace file.
type FilePayload struct {
	Path string `json:"path"`
}

type wireEvent struct {
	Data any       `json:"data,omitempty"`
	Type EventType `json:"type"`
}

// Type returns the event kind.
func (e Event) Type() EventType { return e.kind }

// Data returns the event payload.
func (e Event) Data() any { return e.data }

// MarshalJSON implements json.Marshaler. Events without a known kind are rejected.
func (e Event) MarshalJSON() ([]byte, error) {
	if !e.kind.Valid() {
		return nil, fmt.Errorf("encode event: unknown type %q", e.kind)
	}
	return json.Marshal(wireEvent{Type: e.kind, Data: e.data})
}

// Connected builds the greeting sent when a connection opens.
func Connected(clientID string) Event {
	return Event{kind: EventConnected, data: ConnectedPayload{ClientID: clientID}}
}

// Pong builds the reply to an inbound ping.
func Pong() Event {
	return Event{kind: EventPong}
}

// TerminalOutput announces a session whose history just grew.
func TerminalOutput(s *TerminalSession) Event {
	return Event{kind: EventTerminalOutput, data: s}
}

// TerminalUpdated announces a renamed, cleared or created session.
func TerminalUpdated(s *TerminalSession) Event {
	return Event{kind: EventTerminalUpdated, data: s}
}

// TerminalDeleted announces a removed session.
func TerminalDeleted(id string) Event {
	return Event{kind: EventTerminalUpdated, data: DeletedPayload{ID: id, Deleted: true}}
}

// LogCreated announces a new console log entry.
func LogCreated(l *ConsoleLog) Event {
	return Event{kind: EventLogCreated, data: l}
}

// ProjectUpdated announces a created or changed project.
func ProjectUpdated(p *Project) Event {
	return Event{kind: EventProjectUpdated, data: p}
}

// ProjectDeleted announces a removed project.
func ProjectDeleted(id string) Event {
	return Event{kind: EventProjectUpdated, data: DeletedPayload{ID: id, Deleted: true}}
}

// FileUpdated announces a change to the file at path.
func FileUpdated(path string) Event {
	return Event{kind: EventFileUpdated, data: FilePayload{Path: path}}
}

// ResourceChanged builds a task, workflow or secret notification.
func ResourceChanged(kind EventType, id string, deleted bool) (Event, error) {
	switch kind {
	case EventTaskUpdated, EventWorkflowUpdated, EventSecretUpdated:
		return Event{kind: kind, data: DeletedPayload{ID: id, Deleted: deleted}}, nil
	}
	return Event{}, fmt.Errorf("%w: %q is not a resource event", ErrValidation, kind)
}

// InboundMessage is a message received from a real-time client.
type InboundMessage struct {
	Type string `json:"type"`
}

// ParseInbound decodes a client message. Anything that is not a JSON object
// with a string type yields an error and is ignored by callers.
func ParseInbound(data []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InboundMessage{}, err
	}
	return msg, nil
}
