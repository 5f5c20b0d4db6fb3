// Package extensibility lets an embedding host extend a running session's
// ECMAScript datamodel with native Go functions, and feed it external events
// from outside the usual ProcessEvent call path. It is the modern home of
// the teacher's pluggable guard/action registries (DefaultActionRunner,
// DefaultGuardEvaluator, ExpressionGuardEvaluator): where the teacher looked
// a string action/guard ID up in a registry at dispatch time, here the host
// registers a named Go function once and the datamodel (C1) exposes it
// directly to every <script>/<assign>/cond expression that references it —
// no separate lookup layer, no parallel expression language.
package extensibility

import (
	"fmt"
	"sync"

	"github.com/scxmlgo/scxml/internal/datamodel"
)

// NativeFunctions is a host-wide registry of named Go callables. Register
// before starting any session; InstallInto copies the current snapshot into
// one session's datamodel so later Register calls never retroactively
// appear in sessions already running.
type NativeFunctions struct {
	mu    sync.Mutex
	funcs map[string]any
}

// NewNativeFunctions creates an empty registry.
func NewNativeFunctions() *NativeFunctions {
	return &NativeFunctions{funcs: make(map[string]any)}
}

// Register installs fn under name. fn must be a Go func value; goja exports
// any func as a callable JS function when it is set as a VM global, so no
// signature is enforced here beyond that.
func (n *NativeFunctions) Register(name string, fn any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.funcs[name] = fn
}

// Unregister removes name, if present.
func (n *NativeFunctions) Unregister(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.funcs, name)
}

// InstallInto binds every currently-registered function as a global in
// sessionID's datamodel. Called once, right after CreateSession, before any
// <data>/<onentry> content runs so early-bound data can already reference
// them.
func (n *NativeFunctions) InstallInto(dm *datamodel.Engine, sessionID string) error {
	n.mu.Lock()
	snapshot := make(map[string]any, len(n.funcs))
	for name, fn := range n.funcs {
		snapshot[name] = fn
	}
	n.mu.Unlock()

	for name, fn := range snapshot {
		if err := dm.SetVariable(sessionID, name, fn); err != nil {
			return fmt.Errorf("extensibility: installing native %q: %w", name, err)
		}
	}
	return nil
}
