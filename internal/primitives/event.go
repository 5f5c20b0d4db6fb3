// Package primitives holds the small, dependency-free runtime value types
// shared by every tier of the engine: the Event envelope and the Context
// key/value store used by null-datamodel sessions. Kept from the teacher's
// internal/primitives package and generalized to the full W3C Event shape
// (spec.md §3 "Event").
package primitives

// EventType classifies where an Event originated, per spec.md §3.
type EventType int

const (
	// Internal events come from <raise>. A <send> (including one targeting
	// #_internal) builds an External event delivered to the external queue.
	Internal EventType = iota
	// Platform events are synthesized by the interpreter itself: error.*, done.*.
	Platform
	// External events come from the host, from another session, or from an I/O processor.
	External
)

func (t EventType) String() string {
	switch t {
	case Internal:
		return "internal"
	case Platform:
		return "platform"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

// Event is the immutable value passed through the internal/external queues,
// exposed to ECMAScript as _event. Fields are exported for read-only access;
// callers must not mutate an Event after construction (matches the teacher's
// documented immutability contract for primitives.Event).
type Event struct {
	Name       string
	Type       EventType
	Data       any
	SendID     string
	Origin     string
	OriginType string
	InvokeID   string
}

// NewEvent constructs an external Event with no correlation metadata — the
// common case for processEvent() calls from the host.
func NewEvent(name string, data any) Event {
	return Event{Name: name, Type: External, Data: data}
}

// NewInternalEvent constructs an Event as raised via <raise>.
func NewInternalEvent(name string, data any) Event {
	return Event{Name: name, Type: Internal, Data: data}
}

// NewPlatformEvent constructs a synthesized error.*/done.* event.
func NewPlatformEvent(name string, data any) Event {
	return Event{Name: name, Type: Platform, Data: data}
}

// ErrorExecution builds the error.execution platform event (spec.md §7), optionally
// carrying the sendid of the failing <send>, per test 332's requirement.
func ErrorExecution(message string, sendID string) Event {
	return Event{
		Name:   "error.execution",
		Type:   Platform,
		Data:   map[string]any{"message": message},
		SendID: sendID,
	}
}

// ErrorCommunication builds the error.communication platform event.
func ErrorCommunication(message string, sendID string) Event {
	return Event{
		Name:   "error.communication",
		Type:   Platform,
		Data:   map[string]any{"message": message},
		SendID: sendID,
	}
}

// DoneState builds a done.state.<id> platform event carrying optional donedata.
func DoneState(stateID string, data any) Event {
	return Event{Name: "done.state." + stateID, Type: Platform, Data: data}
}

// DoneInvoke builds a done.invoke.<id> external event (delivered to the parent session).
func DoneInvoke(invokeID string, data any) Event {
	return Event{Name: "done.invoke." + invokeID, Type: External, Data: data, InvokeID: invokeID}
}
