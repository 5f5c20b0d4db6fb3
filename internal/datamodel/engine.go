// Package datamodel implements C1, the ECMAScript datamodel engine of
// spec.md §4.1. goja (github.com/dop251/goja) was sourced from the pack's
// other_examples/manifests/houzhh15-mote/go.mod, the one place in the
// retrieved corpus that pulls in a pure-Go ECMAScript VM; the teacher's own
// ExpressionGuardEvaluator only parses three-token "key op value" guards,
// nowhere near sufficient for SCXML's datamodel="ecmascript" expressions.
//
// Every goja.Runtime is single-threaded by construction, and the W3C spec
// requires evaluation order to be observable as if the whole interpreter
// were single-threaded even across concurrently-running sessions (an
// invoke's child session must never race its parent's script execution).
// Engine enforces that with one dedicated worker goroutine: every session's
// every evaluation is funneled through the same channel and runs serially,
// regardless of how many sessions exist or which goroutine called in.
package datamodel

import (
	"sync"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/errtype"
	"github.com/scxmlgo/scxml/internal/primitives"
)

// InPredicate answers the SCXML In(stateId) platform function for one
// session; the core interpreter supplies it per session at creation time.
type InPredicate func(stateID string) bool

// datamodelNull is the model.Model.Datamodel value selecting the null
// datamodel (spec.md: "only ECMAScript and the null datamodel are
// required"). Anything else, including the default "", runs as ecmascript.
const datamodelNull = "null"

// session is either an ecmascript session (vm set, ctx nil) or a null
// datamodel session (ctx set, vm nil): the null datamodel has no scripting
// engine at all, just a plain variable store plus the In() predicate.
type session struct {
	id  string
	kind string
	vm  *goja.Runtime
	ctx *primitives.Context
	in  InPredicate
}

// Engine is an SCXML ECMAScript datamodel host. Safe for concurrent use.
type Engine struct {
	logger zerolog.Logger

	sessions map[string]*session

	requests chan request
	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once
}

type request struct {
	fn   func()
	done chan struct{}
}

// New starts the Engine's worker goroutine.
func New(logger zerolog.Logger) *Engine {
	e := &Engine{
		logger:   logger,
		sessions: make(map[string]*session),
		requests: make(chan request, 64),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go e.worker()
	return e
}

func (e *Engine) worker() {
	defer close(e.done)
	for {
		select {
		case req := <-e.requests:
			req.fn()
			close(req.done)
		case <-e.shutdown:
			return
		}
	}
}

// run executes fn on the worker goroutine and blocks until it completes. A
// call made after Shutdown is silently dropped — fn never runs, and run
// returns immediately with whatever zero-value outputs fn would have set.
func (e *Engine) run(fn func()) {
	doneCh := make(chan struct{})
	select {
	case e.requests <- request{fn: fn, done: doneCh}:
	case <-e.shutdown:
		return
	}
	select {
	case <-doneCh:
	case <-e.shutdown:
	}
}

// Shutdown stops the worker goroutine. Safe to call more than once.
func (e *Engine) Shutdown() {
	e.once.Do(func() {
		close(e.shutdown)
	})
	<-e.done
}

// CreateSession allocates a fresh datamodel runtime for sessionID and
// installs the SCXML system variables (spec.md §4.1): _sessionid, _name,
// _ioprocessors, and the In() platform function. datamodelKind selects
// "ecmascript" (the default, also used when omitted) or "null"; any other
// value is rejected here with an error before any runtime is allocated
// (spec.md §9: "a test that sets datamodel=\"xpath\" should fail fast").
func (e *Engine) CreateSession(sessionID, name string, in InPredicate, datamodelKind ...string) error {
	kind := "ecmascript"
	if len(datamodelKind) > 0 && datamodelKind[0] != "" {
		kind = datamodelKind[0]
	}
	if kind != "ecmascript" && kind != datamodelNull {
		return errtype.Fatalf("datamodel: unsupported datamodel %q (only \"ecmascript\" and \"null\" are implemented)", kind)
	}
	var outErr error
	e.run(func() {
		if _, exists := e.sessions[sessionID]; exists {
			outErr = errtype.Fatalf("datamodel: session %q already exists", sessionID)
			return
		}
		s := &session{id: sessionID, kind: kind, in: in}
		if kind == datamodelNull {
			s.ctx = primitives.NewContext()
		} else {
			s.vm = goja.New()
		}
		e.sessions[sessionID] = s
		e.installSystemVariables(s, name)
	})
	return outErr
}

// DestroySession discards sessionID's runtime. A no-op if unknown.
func (e *Engine) DestroySession(sessionID string) {
	e.run(func() {
		delete(e.sessions, sessionID)
	})
}

// HasSession reports whether sessionID currently has a runtime.
func (e *Engine) HasSession(sessionID string) bool {
	var ok bool
	e.run(func() { _, ok = e.sessions[sessionID] })
	return ok
}

func (e *Engine) installSystemVariables(s *session, name string) {
	if s.kind == datamodelNull {
		s.ctx.Set("_sessionid", s.id)
		s.ctx.Set("_name", name)
		s.ctx.Set("_ioprocessors", map[string]any{})
		return
	}
	s.vm.Set("_sessionid", s.id)
	s.vm.Set("_name", name)
	s.vm.Set("_ioprocessors", map[string]any{})
	s.vm.Set("In", func(stateID string) bool {
		if s.in == nil {
			return false
		}
		return s.in(stateID)
	})
}

// SetIOProcessors refreshes the _ioprocessors system variable from the
// schemes currently registered on the event target registry (spec.md §4.1,
// §4.4). Each scheme maps to an object carrying its own "location".
func (e *Engine) SetIOProcessors(sessionID string, schemes []string) error {
	var outErr error
	e.run(func() {
		s, ok := e.sessions[sessionID]
		if !ok {
			outErr = errtype.ErrNoSuchSession
			return
		}
		procs := make(map[string]any, len(schemes))
		for _, scheme := range schemes {
			procs[scheme] = map[string]any{"location": s.id}
		}
		if s.kind == datamodelNull {
			s.ctx.Set("_ioprocessors", procs)
			return
		}
		s.vm.Set("_ioprocessors", procs)
	})
	return outErr
}
