// Package scxml is the root facade of a W3C SCXML 1.0 conformant state
// machine execution engine: load a model, start one or more sessions, feed
// them events, observe their active configuration. It wires together the
// independently-built tiers (C1 datamodel, C2 queues, C3 scheduler, C4
// event targets, C5 action execution, C6 invoke coordination, C7 interpreter
// core) into one constructable Engine, the way the teacher's root package
// wires its Machine around a MachineConfig.
package scxml

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/core"
	"github.com/scxmlgo/scxml/internal/datamodel"
	"github.com/scxmlgo/scxml/internal/errtype"
	"github.com/scxmlgo/scxml/internal/primitives"
	"github.com/scxmlgo/scxml/internal/target"
	"github.com/scxmlgo/scxml/model"
)

// Model is the immutable parsed document tree; re-exported so callers never
// need to import the model package directly for the common case of just
// starting a session from one.
type Model = model.Model

// Event is the envelope passed to ProcessEvent and carried through _event.
type Event = primitives.Event

// ParserFunc parses SCXML document bytes into a Model. The engine ships
// with none configured: the SCXML/XInclude parser is a host concern (an
// embedder typically already has one, or uses model.Builder directly).
type ParserFunc func(data []byte) (*model.Model, error)

// Engine is a process-wide host around every running session. One Engine
// typically suffices per process; Engine itself is safe for concurrent use.
type Engine struct {
	dm       *datamodel.Engine
	registry *core.SessionRegistry
	targets  *target.Registry
	dispatch *target.Dispatcher
	logger   zerolog.Logger
	parser   ParserFunc
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*engineConfig)

type engineConfig struct {
	logger zerolog.Logger
	parser ParserFunc
}

// WithEngineLogger sets the zerolog.Logger used for every session created
// by this Engine (individual sessions may still override it via
// WithSessionOptions' core.WithLogger).
func WithEngineLogger(logger zerolog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = logger }
}

// WithParser installs the SCXML document parser used by LoadFromString/
// LoadFromFile and by <invoke src="...">. Without one, both fail with
// errtype.ErrNoParser.
func WithParser(p ParserFunc) EngineOption {
	return func(c *engineConfig) { c.parser = p }
}

// NewEngine constructs an Engine. Wiring order matters: the session
// registry is built first (with no Dispatcher yet), then the target
// registry and dispatcher (which need the session registry as their
// Deliverer), then the dispatcher is installed back onto the session
// registry — the same two-phase construction C3/C4 and C4/C7 each use to
// resolve their own circular dependency.
func NewEngine(opts ...EngineOption) *Engine {
	cfg := engineConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	dm := datamodel.New(cfg.logger)
	sessionRegistry := core.NewSessionRegistry(dm, cfg.logger)
	targetRegistry := target.NewRegistry(sessionRegistry)
	dispatcher := target.NewDispatcher(targetRegistry, cfg.logger)
	sessionRegistry.SetDispatcher(dispatcher)

	if cfg.parser != nil {
		sessionRegistry.SetInvokeLoader(func(src string) (*model.Model, error) {
			data, err := os.ReadFile(src)
			if err != nil {
				return nil, err
			}
			return cfg.parser(data)
		})
	}

	return &Engine{
		dm:       dm,
		registry: sessionRegistry,
		targets:  targetRegistry,
		dispatch: dispatcher,
		logger:   cfg.logger,
		parser:   cfg.parser,
	}
}

// RegisterIOProcessor binds an external <send target> URI scheme (e.g.
// "http", "https") to a target.Factory, making it resolvable from every
// session and visible in _ioprocessors.
func (e *Engine) RegisterIOProcessor(scheme string, factory target.Factory) {
	e.targets.Register(scheme, factory)
}

// SetRateLimit installs a per-scheme token bucket on outbound <send>s.
func (e *Engine) SetRateLimit(scheme string, limit target.RateLimit) {
	e.dispatch.SetRateLimit(scheme, limit)
}

// LoadFromString parses an SCXML document using the configured parser.
func (e *Engine) LoadFromString(doc string) (*model.Model, error) {
	if e.parser == nil {
		return nil, errtype.ErrNoParser
	}
	return e.parser([]byte(doc))
}

// LoadFromFile reads and parses an SCXML document from disk.
func (e *Engine) LoadFromFile(path string) (*model.Model, error) {
	if e.parser == nil {
		return nil, errtype.ErrNoParser
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.parser(data)
}

// StartSession builds and starts a new top-level session for m, assigning
// it sessionID (or a fresh uuid if empty). The returned Session is the
// handle a host uses to send events and observe the configuration.
func (e *Engine) StartSession(m *model.Model, sessionID, name string, opts ...core.Option) (*Session, error) {
	if err := m.Attach(); err != nil {
		return nil, err
	}
	in, err := e.registry.StartTop(m, sessionID, name, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{in: in}, nil
}

// Session returns the handle for a currently-running session id, including
// one spawned by <invoke> (its id is the invoke id).
func (e *Engine) Session(sessionID string) (*Session, bool) {
	in, ok := e.registry.Session(sessionID)
	if !ok {
		return nil, false
	}
	return &Session{in: in}, true
}

// Sessions lists every currently-registered session id.
func (e *Engine) Sessions() []string {
	return e.registry.Sessions()
}

// Shutdown stops the datamodel and dispatcher worker goroutines. Call after
// every session has been stopped.
func (e *Engine) Shutdown() {
	e.dispatch.Shutdown(true)
	e.dm.Shutdown()
}

// Session is a handle to one running Interpreter.
type Session struct {
	in *core.Interpreter
}

// ID returns the session id.
func (s *Session) ID() string { return s.in.SessionID() }

// ProcessEvent delivers an external event to the session.
func (s *Session) ProcessEvent(ev Event) error { return s.in.ProcessEvent(ev) }

// ActiveStates returns every currently active state id, sorted.
func (s *Session) ActiveStates() []string { return s.in.ActiveStates() }

// IsStateActive reports whether id is in the current configuration.
func (s *Session) IsStateActive(id string) bool { return s.in.IsStateActive(id) }

// IsRunning reports whether the session's main loop is still driving.
func (s *Session) IsRunning() bool { return s.in.IsRunning() }

// Stop halts the session's main loop and releases its resources.
func (s *Session) Stop() { s.in.Stop() }

// Snapshot captures the session's current configuration for persistence.
func (s *Session) Snapshot() core.Snapshot { return s.in.Snapshot() }
