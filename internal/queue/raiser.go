package queue

import (
	"sync/atomic"

	"github.com/scxmlgo/scxml/internal/primitives"
)

// DrainFunc is invoked synchronously by the Raiser in immediate mode after
// an event has been enqueued, so the interpreter can process it before
// Raise returns. It is never called while the queues' mutex is held.
type DrainFunc func()

// Raiser is the thin façade over Queues that action execution code and the
// interpreter call into (spec.md §4.2 contract: raise/processNextQueued/
// hasQueued/shutdown). It adds the immediate-vs-queued mode switch: during
// initial onentry (before the main loop starts waiting on events) raised
// events must be fully processed before Start() returns, so the interpreter
// flips to immediate mode for that window only.
type Raiser struct {
	queues    *Queues
	immediate int32 // atomic bool
	drain     DrainFunc
}

// NewRaiser wraps q, calling drain synchronously after each Raise while in
// immediate mode.
func NewRaiser(q *Queues, drain DrainFunc) *Raiser {
	return &Raiser{queues: q, drain: drain}
}

// SetImmediate toggles immediate-drain mode.
func (r *Raiser) SetImmediate(on bool) {
	if on {
		atomic.StoreInt32(&r.immediate, 1)
	} else {
		atomic.StoreInt32(&r.immediate, 0)
	}
}

// Immediate reports the current mode.
func (r *Raiser) Immediate() bool {
	return atomic.LoadInt32(&r.immediate) != 0
}

// Raise enqueues ev and, in immediate mode, synchronously drains it.
func (r *Raiser) Raise(ev primitives.Event, priority Priority, origin, sendID, invokeID string) {
	ev.Origin = origin
	ev.SendID = sendID
	ev.InvokeID = invokeID
	r.queues.Raise(ev, priority)
	if r.Immediate() && r.drain != nil {
		r.drain()
	}
}

// HasQueued delegates to the underlying Queues.
func (r *Raiser) HasQueued() bool { return r.queues.HasQueued() }

// ProcessNextQueued delegates to the underlying Queues.
func (r *Raiser) ProcessNextQueued() (primitives.Event, Priority, bool) {
	return r.queues.ProcessNextQueued()
}

// Shutdown delegates to the underlying Queues.
func (r *Raiser) Shutdown() { r.queues.Shutdown() }

// Queues exposes the backing Queues for callers (the interpreter) that need
// HasInternal/HasExternal/DequeueInternal/DequeueExternal directly.
func (r *Raiser) Queues() *Queues { return r.queues }
