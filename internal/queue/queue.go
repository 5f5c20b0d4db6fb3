// Package queue implements C2, the per-session internal/external event
// queues and the Raiser that feeds them (spec.md §4.2). The teacher's
// Machine kept a single buffered channel plus a mutex-guarded slice
// (comalice/statechartx/internal/core/machine.go); we split that into two
// explicit FIFOs so the interpreter can enforce "internal before external"
// at the type level instead of by convention.
package queue

import (
	"sync"

	"github.com/scxmlgo/scxml/internal/primitives"
)

// Priority selects which queue a raised event lands in.
type Priority int

const (
	PriorityInternal Priority = iota
	PriorityExternal
)

// Queues holds one session's internal and external FIFOs. Safe for
// concurrent use: SendEvent-style callers may enqueue externally from any
// goroutine while the interpreter's own driver goroutine drains both.
type Queues struct {
	mu       sync.Mutex
	internal []primitives.Event
	external []primitives.Event
	closed   bool
}

// New creates an empty pair of queues.
func New() *Queues {
	return &Queues{}
}

// Raise enqueues ev at the given priority. Non-blocking: both queues grow
// unbounded (bounding external input is the host's responsibility, e.g. via
// a buffered EventSource channel, matching the teacher's EventSource design).
func (q *Queues) Raise(ev primitives.Event, priority Priority) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	switch priority {
	case PriorityInternal:
		q.internal = append(q.internal, ev)
	default:
		q.external = append(q.external, ev)
	}
}

// RaiseInternal is sugar for Raise(ev, PriorityInternal).
func (q *Queues) RaiseInternal(ev primitives.Event) { q.Raise(ev, PriorityInternal) }

// RaiseExternal is sugar for Raise(ev, PriorityExternal).
func (q *Queues) RaiseExternal(ev primitives.Event) { q.Raise(ev, PriorityExternal) }

// HasInternal reports whether the internal queue is non-empty.
func (q *Queues) HasInternal() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.internal) > 0
}

// HasExternal reports whether the external queue is non-empty.
func (q *Queues) HasExternal() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.external) > 0
}

// HasQueued reports whether either queue has a pending event (§4.2 hasQueued()).
func (q *Queues) HasQueued() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.internal) > 0 || len(q.external) > 0
}

// DequeueInternal pops the oldest internal event, if any.
func (q *Queues) DequeueInternal() (primitives.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.internal) == 0 {
		return primitives.Event{}, false
	}
	ev := q.internal[0]
	q.internal = q.internal[1:]
	return ev, true
}

// DequeueExternal pops the oldest external event, if any. The interpreter
// only calls this once the internal queue has been fully drained, enforcing
// the priority discipline of spec.md §4.2/§8 property 2.
func (q *Queues) DequeueExternal() (primitives.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.external) == 0 {
		return primitives.Event{}, false
	}
	ev := q.external[0]
	q.external = q.external[1:]
	return ev, true
}

// ProcessNextQueued dequeues one event, preferring internal over external,
// and reports which priority it came from — the single-step primitive the
// interpreter's microstep loop is built from (§4.2 processNextQueued()).
func (q *Queues) ProcessNextQueued() (primitives.Event, Priority, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.internal) > 0 {
		ev := q.internal[0]
		q.internal = q.internal[1:]
		return ev, PriorityInternal, true
	}
	if len(q.external) > 0 {
		ev := q.external[0]
		q.external = q.external[1:]
		return ev, PriorityExternal, true
	}
	return primitives.Event{}, 0, false
}

// Shutdown marks the queues closed; further Raise calls are silently dropped.
// Matches §5 "queues are drained of deliverable side-effects... then
// resources are released" — draining happens before Shutdown is called.
func (q *Queues) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.internal = nil
	q.external = nil
}

// Len returns the current (internal, external) queue lengths.
func (q *Queues) Len() (internal, external int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.internal), len(q.external)
}
