package core

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/datamodel"
	"github.com/scxmlgo/scxml/internal/invoke"
	"github.com/scxmlgo/scxml/internal/primitives"
	"github.com/scxmlgo/scxml/internal/target"
	"github.com/scxmlgo/scxml/model"
)

// SessionRegistry is the process-wide table of every running Interpreter —
// top-level sessions and every <invoke>-spawned child — keyed by session id.
// It satisfies target.Deliverer (so C4 can resolve #_parent/#_<invokeid>
// targets across sessions without importing core) and supplies C6's
// invoke.SpawnFunc, so the root facade never has to expose Interpreter
// construction to anything but itself.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Interpreter
	parentOf map[string]string

	deps         Deps
	invokeLoader func(src string) (*model.Model, error)
	logger       zerolog.Logger
}

// NewSessionRegistry wires a SessionRegistry and the invoke.Coordinator it
// owns around dm. The returned registry has no Dispatcher yet — call
// SetDispatcher once the event target Dispatcher (which itself needs this
// registry as its Deliverer) has been constructed, breaking the
// construction cycle between C4 and C7.
func NewSessionRegistry(dm *datamodel.Engine, logger zerolog.Logger) *SessionRegistry {
	sr := &SessionRegistry{
		sessions: make(map[string]*Interpreter),
		parentOf: make(map[string]string),
		logger:   logger,
	}
	sr.deps = Deps{Datamodel: dm}
	sr.deps.Invokes = invoke.New(sr.spawnChild, dm, logger)
	return sr
}

// SetDispatcher completes the Deps wiring; must be called once, before any
// session is started.
func (sr *SessionRegistry) SetDispatcher(d *target.Dispatcher) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.deps.Dispatcher = d
}

// SetInvokeLoader installs the function used to load an <invoke src="...">
// document (as opposed to inline <content>). Optional: an invoke with
// neither inline content nor a configured loader fails to spawn.
func (sr *SessionRegistry) SetInvokeLoader(fn func(src string) (*model.Model, error)) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.invokeLoader = fn
}

func (sr *SessionRegistry) currentDeps() Deps {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.deps
}

func (sr *SessionRegistry) register(in *Interpreter, parentSessionID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.sessions[in.SessionID()] = in
	if parentSessionID != "" {
		sr.parentOf[in.SessionID()] = parentSessionID
	}
}

// Unregister drops a session once it has fully stopped.
func (sr *SessionRegistry) Unregister(sessionID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	delete(sr.sessions, sessionID)
	delete(sr.parentOf, sessionID)
}

// Session looks up a currently-registered Interpreter by id.
func (sr *SessionRegistry) Session(sessionID string) (*Interpreter, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	in, ok := sr.sessions[sessionID]
	return in, ok
}

// Sessions lists every currently-registered session id.
func (sr *SessionRegistry) Sessions() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	out := make([]string, 0, len(sr.sessions))
	for id := range sr.sessions {
		out = append(out, id)
	}
	return out
}

// StartTop builds and starts a new top-level (non-invoked) session for m.
func (sr *SessionRegistry) StartTop(m *model.Model, sessionID, name string, opts ...Option) (*Interpreter, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	in := NewInterpreter(m, sessionID, name, "", sr.currentDeps(), opts...)
	sr.register(in, "")
	if err := in.Start(); err != nil {
		sr.Unregister(sessionID)
		return nil, err
	}
	return in, nil
}

// spawnChild is the invoke.SpawnFunc injected into the Coordinator: it
// constructs (without starting — the Coordinator starts it) a child
// Interpreter for inv, wired so the child's eventual root-final termination
// reaches the parent as done.invoke.<id>.
func (sr *SessionRegistry) spawnChild(inv *model.InvokeNode, parentSessionID, childSessionID string, initialData map[string]any) (invoke.ChildSession, error) {
	sr.mu.RLock()
	parent, ok := sr.sessions[parentSessionID]
	loader := sr.invokeLoader
	sr.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("core: invoking session %q not found", parentSessionID)
	}

	childModel := inv.Content
	if childModel == nil {
		if inv.Src == "" || loader == nil {
			return nil, fmt.Errorf("core: invoke %q has neither inline content nor a configured src loader", inv.ID)
		}
		m, err := loader(inv.Src)
		if err != nil {
			return nil, fmt.Errorf("core: loading invoke src %q: %w", inv.Src, err)
		}
		childModel = m
	}

	invokeID := inv.ID
	child := NewInterpreter(childModel, childSessionID, childModel.Name, parentSessionID, sr.currentDeps(),
		WithInvokeID(invokeID),
		WithLogger(sr.logger),
		WithSeedData(initialData),
		WithParentNotify(func(doneData any) {
			_ = parent.DeliverExternal(primitives.DoneInvoke(invokeID, doneData))
		}),
	)
	sr.register(child, parentSessionID)
	return child, nil
}

// DeliverExternal satisfies target.Deliverer: enqueue ev on sessionID's
// external queue.
func (sr *SessionRegistry) DeliverExternal(sessionID string, ev primitives.Event) error {
	in, ok := sr.Session(sessionID)
	if !ok {
		return fmt.Errorf("core: no such session %q", sessionID)
	}
	return in.DeliverExternal(ev)
}

// DeliverInternal satisfies target.Deliverer: enqueue ev on sessionID's
// internal queue.
func (sr *SessionRegistry) DeliverInternal(sessionID string, ev primitives.Event) error {
	in, ok := sr.Session(sessionID)
	if !ok {
		return fmt.Errorf("core: no such session %q", sessionID)
	}
	return in.DeliverInternal(ev)
}

// ParentSession satisfies target.Deliverer: resolve "#_parent".
func (sr *SessionRegistry) ParentSession(sessionID string) (string, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	p, ok := sr.parentOf[sessionID]
	return p, ok
}

// InvokeSession satisfies target.Deliverer: resolve "#_<invokeid>".
func (sr *SessionRegistry) InvokeSession(sessionID, invokeID string) (string, bool) {
	return sr.currentDeps().Invokes.ChildSessionID(sessionID, invokeID)
}
