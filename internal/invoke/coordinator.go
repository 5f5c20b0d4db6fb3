// Package invoke implements C6, the invoke coordinator of spec.md §4.6:
// spawning/cancelling child sessions for <invoke>, namelist/param injection,
// autoforwarding, and locating the <finalize> body for an inbound child
// event. Grounded on original_source's
// rsm/include/runtime/InvokeExecutor.h (SCXMLInvokeHandler), translating its
// activeSessions_ map and cancelledChildSessions_ FIFO into Go.
package invoke

import (
	"container/ring"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/datamodel"
	"github.com/scxmlgo/scxml/internal/primitives"
	"github.com/scxmlgo/scxml/model"
)

// cancelledCapacity bounds the FIFO of recently-cancelled child session ids
// kept to filter stale events (original_source's MAX_CANCELLED_SESSIONS).
const cancelledCapacity = 10000

// ChildSession is the narrow view of a spawned interpreter session that the
// coordinator needs. The concrete core.Interpreter satisfies this
// structurally — invoke never imports core, avoiding the import cycle core
// would otherwise have through invoke back to itself.
type ChildSession interface {
	SessionID() string
	Start() error
	Stop()
	DeliverExternal(ev primitives.Event) error
}

type invocation struct {
	invokeID         string
	declaringStateID string
	parentSessionID  string
	child            ChildSession
	autoforward      bool
	finalize         []model.Executable
}

// Coordinator manages every <invoke> spawned by one interpreter session
// tree. A Coordinator is shared process-wide (not one per session) so the
// cancelled-session FIFO and cross-session lookups stay consistent.
type Coordinator struct {
	spawn  SpawnFunc
	dm     *datamodel.Engine
	logger zerolog.Logger

	mu             sync.Mutex
	byInvokeID     map[string]*invocation
	byChildSession map[string]*invocation

	cancelMu      sync.Mutex
	cancelledSet  map[string]bool
	cancelledRing *ring.Ring
}

// SpawnFunc constructs and wires (but does not yet Start) a child session
// for inv, seeded with initialData (the evaluated namelist/param values).
// Supplied by core.SessionRegistry (its spawnChild method), which constructs
// the concrete core.Interpreter so that invoke never imports core.
type SpawnFunc func(inv *model.InvokeNode, parentSessionID, childSessionID string, initialData map[string]any) (ChildSession, error)

// New creates a Coordinator. dm is the datamodel engine used to evaluate
// namelist/param expressions against the invoking (parent) session.
func New(spawn SpawnFunc, dm *datamodel.Engine, logger zerolog.Logger) *Coordinator {
	r := ring.New(cancelledCapacity)
	for i := 0; i < cancelledCapacity; i++ {
		r.Value = ""
		r = r.Next()
	}
	return &Coordinator{
		spawn:          spawn,
		dm:             dm,
		logger:         logger,
		byInvokeID:     make(map[string]*invocation),
		byChildSession: make(map[string]*invocation),
		cancelledSet:   make(map[string]bool),
		cancelledRing:  r,
	}
}

// Spawn starts a new invocation of inv on behalf of parentSessionID. The
// child session id is chosen equal to the invoke id, so a child's own
// done.invoke synthesis (core's job) never needs a separate lookup.
func (c *Coordinator) Spawn(inv *model.InvokeNode, parentSessionID string) (string, error) {
	invokeID := inv.ID
	if invokeID == "" {
		invokeID = fmt.Sprintf("invoke_%s", uuid.NewString())
	}
	if inv.IDLocation != "" {
		if err := c.dm.SetVariable(parentSessionID, inv.IDLocation, invokeID); err != nil {
			return "", err
		}
	}

	initialData, err := c.resolveInitialData(parentSessionID, inv)
	if err != nil {
		return "", err
	}

	child, err := c.spawn(inv, parentSessionID, invokeID, initialData)
	if err != nil {
		return "", err
	}

	inc := &invocation{
		invokeID:         invokeID,
		declaringStateID: inv.DeclaringID,
		parentSessionID:  parentSessionID,
		child:            child,
		autoforward:      inv.Autoforward,
		finalize:         inv.Finalize,
	}
	c.mu.Lock()
	c.byInvokeID[invokeID] = inc
	c.byChildSession[child.SessionID()] = inc
	c.mu.Unlock()

	if err := child.Start(); err != nil {
		c.mu.Lock()
		delete(c.byInvokeID, invokeID)
		delete(c.byChildSession, child.SessionID())
		c.mu.Unlock()
		return "", err
	}
	return invokeID, nil
}

func (c *Coordinator) resolveInitialData(parentSessionID string, inv *model.InvokeNode) (map[string]any, error) {
	data := make(map[string]any, len(inv.Namelist)+len(inv.Params))
	for _, name := range inv.Namelist {
		v, found, err := c.dm.GetVariable(parentSessionID, name)
		if err != nil {
			return nil, err
		}
		if found {
			data[name] = v
		}
	}
	for _, p := range inv.Params {
		var v any
		var err error
		switch {
		case p.Expr != "":
			v, err = c.dm.EvaluateExpression(parentSessionID, p.Expr)
		case p.Location != "":
			v, _, err = c.dm.GetVariable(parentSessionID, p.Location)
		}
		if err != nil {
			return nil, err
		}
		data[p.Name] = v
	}
	return data, nil
}

// Cancel stops invokeID's child session, if active, and remembers its child
// session id as recently-cancelled so stale in-flight events from it are
// filtered (spec.md §4.6, W3C test 252).
func (c *Coordinator) Cancel(invokeID string) {
	c.mu.Lock()
	inc, ok := c.byInvokeID[invokeID]
	if ok {
		delete(c.byInvokeID, invokeID)
		delete(c.byChildSession, inc.child.SessionID())
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	inc.child.Stop()
	c.markCancelled(inc.child.SessionID())
}

// CancelForState cancels every invoke declared on stateID, called when that
// state is exited.
func (c *Coordinator) CancelForState(stateID string) {
	c.mu.Lock()
	var toCancel []*invocation
	for id, inc := range c.byInvokeID {
		if inc.declaringStateID == stateID {
			toCancel = append(toCancel, inc)
			delete(c.byInvokeID, id)
			delete(c.byChildSession, inc.child.SessionID())
		}
	}
	c.mu.Unlock()
	for _, inc := range toCancel {
		inc.child.Stop()
		c.markCancelled(inc.child.SessionID())
	}
}

// AutoforwardSessions returns every currently active child session spawned
// by parentSessionID with autoforward enabled.
func (c *Coordinator) AutoforwardSessions(parentSessionID string) []ChildSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ChildSession
	for _, inc := range c.byInvokeID {
		if inc.parentSessionID == parentSessionID && inc.autoforward {
			out = append(out, inc.child)
		}
	}
	return out
}

// FinalizeActionsForChildSession returns the <finalize> body registered for
// the invoke whose child session id is childSessionID.
func (c *Coordinator) FinalizeActionsForChildSession(childSessionID string) ([]model.Executable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inc, ok := c.byChildSession[childSessionID]
	if !ok {
		return nil, false
	}
	return inc.finalize, true
}

// InvokeIDForChildSession resolves the invoke id belonging to childSessionID,
// the reverse of FinalizeActionsForChildSession's lookup. Used to stamp
// _event.invokeid (spec.md §3/§4.6) on every event a parent receives from an
// invoked child, not only the synthesized done.invoke.* event.
func (c *Coordinator) InvokeIDForChildSession(childSessionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inc, ok := c.byChildSession[childSessionID]
	if !ok {
		return "", false
	}
	return inc.invokeID, true
}

// IsActive reports whether invokeID currently has a running child session.
func (c *Coordinator) IsActive(invokeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byInvokeID[invokeID]
	return ok
}

// ChildSessionID resolves the child session id belonging to invokeID, given
// it was invoked by parentSessionID and is still active — the lookup behind
// a "#_<invokeid>" send target. Spawn always chooses the child session id
// equal to the invoke id, but this still asks the child for its id rather
// than assuming that, so a future Spawn could change the scheme without
// breaking this lookup.
func (c *Coordinator) ChildSessionID(parentSessionID, invokeID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inc, ok := c.byInvokeID[invokeID]
	if !ok || inc.parentSessionID != parentSessionID {
		return "", false
	}
	return inc.child.SessionID(), true
}
