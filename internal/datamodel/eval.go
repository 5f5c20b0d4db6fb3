package datamodel

import (
	"github.com/dop251/goja"

	"github.com/scxmlgo/scxml/internal/errtype"
	"github.com/scxmlgo/scxml/internal/primitives"
)

// EvaluateExpression evaluates expr (a <transition cond>, <data expr>,
// <param expr>, ... value) against sessionID's runtime and returns its
// exported Go value. A syntax or runtime error is wrapped as an
// errtype.Error of kind Execution, carrying no sendid (the caller attaches
// one if the expression came from a <send>).
func (e *Engine) EvaluateExpression(sessionID, expr string) (any, error) {
	var result any
	var outErr error
	e.run(func() {
		s, ok := e.sessions[sessionID]
		if !ok {
			outErr = errtype.ErrNoSuchSession
			return
		}
		if s.kind == datamodelNull {
			result, outErr = evalNullExpression(s, expr)
			return
		}
		v, err := s.vm.RunString(expr)
		if err != nil {
			outErr = errtype.Executionf("", "evaluating %q: %v", expr, err)
			return
		}
		if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			result = v.Export()
		}
	})
	return result, outErr
}

// EvaluateCondition evaluates a guard/cond expression and coerces the result
// to bool via ECMAScript truthiness rules (goja's ToBoolean). A failing
// expression evaluates to false rather than aborting the transition
// selection pass, consistent with the W3C requirement that a cond error
// simply disqualifies that transition (after raising error.execution).
func (e *Engine) EvaluateCondition(sessionID, expr string) (bool, error) {
	var result bool
	var outErr error
	e.run(func() {
		s, ok := e.sessions[sessionID]
		if !ok {
			outErr = errtype.ErrNoSuchSession
			return
		}
		if s.kind == datamodelNull {
			result, outErr = evalNullCondition(s, expr)
			return
		}
		v, err := s.vm.RunString(expr)
		if err != nil {
			outErr = errtype.Executionf("", "evaluating cond %q: %v", expr, err)
			return
		}
		result = v.ToBoolean()
	})
	return result, outErr
}

// ExecuteScript runs source (a <script> body or <assign>/<log> expression
// context) for its side effects, discarding any result value.
func (e *Engine) ExecuteScript(sessionID, source string) error {
	var outErr error
	e.run(func() {
		s, ok := e.sessions[sessionID]
		if !ok {
			outErr = errtype.ErrNoSuchSession
			return
		}
		if s.kind == datamodelNull {
			outErr = errtype.Executionf("", "null datamodel: <script> is not supported")
			return
		}
		if _, err := s.vm.RunString(source); err != nil {
			outErr = errtype.Executionf("", "executing script: %v", err)
		}
	})
	return outErr
}

// ValidateExpression performs a syntax-only check of expr, used when
// parsing a document so a malformed expression is reported before the
// machine ever starts rather than as a runtime error.execution.
func ValidateExpression(expr string) error {
	if _, err := goja.Compile("", expr, false); err != nil {
		return errtype.Executionf("", "invalid expression %q: %v", expr, err)
	}
	return nil
}

// SetVariable assigns value to the top-level binding name in sessionID's
// datamodel, used by <assign> and for <param>/<invoke namelist> injection.
func (e *Engine) SetVariable(sessionID, name string, value any) error {
	var outErr error
	e.run(func() {
		s, ok := e.sessions[sessionID]
		if !ok {
			outErr = errtype.ErrNoSuchSession
			return
		}
		if s.kind == datamodelNull {
			s.ctx.Set(name, value)
			return
		}
		s.vm.Set(name, value)
	})
	return outErr
}

// GetVariable returns the current value of name in sessionID's datamodel.
// found is false only when name has never been declared; a variable that
// exists but holds ECMAScript undefined reports found=true, value=nil —
// the spec.md §9 open question on this distinction is resolved in favor of
// keeping it observable to callers (e.g. <param>'s "location unbound"
// check) rather than collapsing both cases to one.
func (e *Engine) GetVariable(sessionID, name string) (value any, found bool, err error) {
	e.run(func() {
		s, ok := e.sessions[sessionID]
		if !ok {
			err = errtype.ErrNoSuchSession
			return
		}
		if s.kind == datamodelNull {
			value, found = s.ctx.Get(name)
			return
		}
		v := s.vm.GlobalObject().Get(name)
		if v == nil {
			found = false
			return
		}
		found = true
		if !goja.IsUndefined(v) && !goja.IsNull(v) {
			value = v.Export()
		}
	})
	return value, found, err
}

// SetCurrentEvent installs ev as the _event system variable for sessionID,
// performed once per microstep before transition selection and action
// execution (spec.md §4.1).
func (e *Engine) SetCurrentEvent(sessionID string, ev primitives.Event) error {
	var outErr error
	e.run(func() {
		s, ok := e.sessions[sessionID]
		if !ok {
			outErr = errtype.ErrNoSuchSession
			return
		}
		if s.kind == datamodelNull {
			s.ctx.Set("_event", map[string]any{
				"name":       ev.Name,
				"type":       ev.Type.String(),
				"sendid":     ev.SendID,
				"origin":     ev.Origin,
				"origintype": ev.OriginType,
				"invokeid":   ev.InvokeID,
				"data":       ev.Data,
			})
			return
		}
		obj := s.vm.NewObject()
		obj.Set("name", ev.Name)
		obj.Set("type", ev.Type.String())
		obj.Set("sendid", ev.SendID)
		obj.Set("origin", ev.Origin)
		obj.Set("origintype", ev.OriginType)
		obj.Set("invokeid", ev.InvokeID)
		obj.Set("data", ev.Data)
		s.vm.Set("_event", obj)
	})
	return outErr
}
