package core

import "github.com/rs/zerolog"

// Option configures an Interpreter via the functional-options pattern
// (kept from the teacher's Machine Option type).
type Option func(*Interpreter)

// WithLogger configures structured logging for the session; the default is
// a disabled zerolog.Logger so a host that never calls this pays nothing.
func WithLogger(logger zerolog.Logger) Option {
	return func(in *Interpreter) { in.logger = logger }
}

// WithPersister configures snapshot save/load.
func WithPersister(p Persister) Option {
	return func(in *Interpreter) { in.persister = p }
}

// WithPublisher configures external publication of processed events.
func WithPublisher(p EventPublisher) Option {
	return func(in *Interpreter) { in.publisher = p }
}

// WithVisualizer configures DOT/graph export.
func WithVisualizer(v Visualizer) Option {
	return func(in *Interpreter) { in.visualizer = v }
}

// WithRegistry configures versioned snapshot storage.
func WithRegistry(r Registry) Option {
	return func(in *Interpreter) { in.registry = r }
}

// WithMetricsHook installs a callback invoked once per processed macrostep
// with the session id and the number of microsteps it took; production's
// Prometheus collector wires itself in this way.
func WithMetricsHook(hook func(sessionID string, microsteps int)) Option {
	return func(in *Interpreter) { in.metricsHook = hook }
}

// WithInvokeID marks this Interpreter as the child session of an <invoke>,
// so its own root-final termination can be reported back as a done.invoke to
// the parent rather than silently ending.
func WithInvokeID(invokeID string) Option {
	return func(in *Interpreter) { in.invokeID = invokeID }
}

// WithParentNotify installs the callback SessionRegistry.spawnChild (the
// invoke coordinator's SpawnFunc) uses to deliver this child's done.invoke event to its parent session once
// the child's top-level final state is reached.
func WithParentNotify(fn func(doneData any)) Option {
	return func(in *Interpreter) { in.onTerminate = fn }
}

// WithSeedData preseeds the session's top-level datamodel variables from an
// <invoke>'s evaluated namelist/params, applied after the session's own
// <data> initializers run so the invoking session's values win.
func WithSeedData(seed map[string]any) Option {
	return func(in *Interpreter) { in.seedData = seed }
}
