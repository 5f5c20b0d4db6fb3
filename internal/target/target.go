// Package target implements C4, the Event Target Registry & Dispatcher of
// spec.md §4.4: resolving an SCXML target URI into a concrete EventTarget
// and dispatching (optionally delayed) sends to it.
package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/scxmlgo/scxml/internal/primitives"
)

// EventTarget is the pluggable I/O processor handler interface of spec.md
// §6. Implementations are registered under a URI scheme at process start;
// the runtime never assumes any particular scheme (e.g. http) is available.
type EventTarget interface {
	Send(ctx context.Context, ev primitives.Event) error
	TargetType() string
	CanHandle(uri string) bool
	Validate() []error
}

// Factory builds an EventTarget bound to a specific URI.
type Factory func(uri string) (EventTarget, error)

// Deliverer is the narrow view of the session registry that target
// resolution needs: same-session, parent-session, and invoked-child-session
// delivery, plus internal-queue delivery for the rare case a target needs
// it. Defined here (not imported from core) to keep C4 free of a dependency
// on C7, per spec.md §9's "cyclic ownership" design note — core implements
// this interface and is injected at wiring time.
type Deliverer interface {
	DeliverExternal(sessionID string, ev primitives.Event) error
	DeliverInternal(sessionID string, ev primitives.Event) error
	ParentSession(sessionID string) (string, bool)
	InvokeSession(sessionID, invokeID string) (string, bool)
}

// invalidTargetError marks a target URI that must abort the containing
// <send> with error.execution rather than attempt delivery (spec.md §4.4
// "target URI starting with ! is invalid", W3C test 159/194).
type invalidTargetError struct{ uri string }

func (e *invalidTargetError) Error() string {
	return fmt.Sprintf("target: invalid target uri %q", e.uri)
}

// IsInvalidTarget reports whether err was produced because a target URI
// started with "!".
func IsInvalidTarget(err error) bool {
	_, ok := err.(*invalidTargetError)
	return ok
}

func isSelfURI(uri string) bool {
	return uri == "" || uri == "#_internal"
}

func isParentURI(uri string) bool {
	return uri == "#_parent"
}

// invokeIDFromURI extracts the invoke id from a "#_<invokeid>" target, or
// "" if uri isn't that shape.
func invokeIDFromURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, "#_") || isSelfURI(uri) || isParentURI(uri) {
		return "", false
	}
	return strings.TrimPrefix(uri, "#_"), true
}

func schemeOf(uri string) string {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return ""
	}
	return uri[:idx]
}
