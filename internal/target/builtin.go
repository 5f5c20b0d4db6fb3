package target

import (
	"context"

	"github.com/scxmlgo/scxml/internal/primitives"
)

// selfTarget implements "#_internal" and the default (empty) target: the
// event is appended to the sending session's own external queue. A <raise>
// never goes through target resolution at all; only <send target="#_internal">
// (or no target) does, which is why this always calls DeliverExternal.
type selfTarget struct {
	deliverer Deliverer
	sessionID string
}

func (t *selfTarget) Send(ctx context.Context, ev primitives.Event) error {
	return t.deliverer.DeliverExternal(t.sessionID, ev)
}
func (t *selfTarget) TargetType() string      { return "internal" }
func (t *selfTarget) CanHandle(uri string) bool { return isSelfURI(uri) }
func (t *selfTarget) Validate() []error       { return nil }

// parentTarget implements "#_parent": delivery to the invoking session, if
// this session was itself spawned by an <invoke>.
type parentTarget struct {
	deliverer Deliverer
	sessionID string
}

func (t *parentTarget) Send(ctx context.Context, ev primitives.Event) error {
	parentID, ok := t.deliverer.ParentSession(t.sessionID)
	if !ok {
		return errNoParentSession{sessionID: t.sessionID}
	}
	return t.deliverer.DeliverExternal(parentID, ev)
}
func (t *parentTarget) TargetType() string        { return "parent" }
func (t *parentTarget) CanHandle(uri string) bool { return isParentURI(uri) }
func (t *parentTarget) Validate() []error         { return nil }

type errNoParentSession struct{ sessionID string }

func (e errNoParentSession) Error() string {
	return "target: session " + e.sessionID + " has no parent session"
}

// invokeTarget implements "#_<invokeid>": delivery to a child session this
// session spawned via <invoke>.
type invokeTarget struct {
	deliverer Deliverer
	sessionID string
	invokeID  string
}

func (t *invokeTarget) Send(ctx context.Context, ev primitives.Event) error {
	childID, ok := t.deliverer.InvokeSession(t.sessionID, t.invokeID)
	if !ok {
		return errNoSuchInvoke{invokeID: t.invokeID}
	}
	return t.deliverer.DeliverExternal(childID, ev)
}
func (t *invokeTarget) TargetType() string { return "invoke" }
func (t *invokeTarget) CanHandle(uri string) bool {
	id, ok := invokeIDFromURI(uri)
	return ok && id == t.invokeID
}
func (t *invokeTarget) Validate() []error { return nil }

type errNoSuchInvoke struct{ invokeID string }

func (e errNoSuchInvoke) Error() string {
	return "target: no such invoke id " + e.invokeID
}
