package datamodel

import (
	"strconv"
	"strings"

	"github.com/scxmlgo/scxml/internal/errtype"
)

// evalNullExpression is the whole expression language the null datamodel
// supports: a quoted string literal, a numeric literal, a bare identifier
// (looked up in the session's Context), or an In(id) platform-function call.
// Grounded on the teacher's own ExpressionGuardEvaluator
// (internal/extensibility/guardevaluator.go): a small hand-rolled parser is
// the right amount of power here too, since the null datamodel deliberately
// forgoes a real scripting language rather than redundantly duplicating one.
func evalNullExpression(s *session, expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if v, ok := quotedLiteral(expr); ok {
		return v, nil
	}
	if n, err := strconv.ParseFloat(expr, 64); err == nil {
		return n, nil
	}
	if id, ok := inCallArg(expr); ok {
		if s.in == nil {
			return false, nil
		}
		return s.in(id), nil
	}
	switch expr {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if v, found := s.ctx.Get(expr); found {
		return v, nil
	}
	return nil, errtype.Executionf("", "null datamodel: unsupported expression %q", expr)
}

// evalNullCondition evaluates expr as a guard: an empty guard is always
// true, otherwise expr is evaluated like evalNullExpression ("In(id)", the
// boolean literals, or a stored variable) and any result that is not a
// boolean, or any expression it cannot evaluate, is rejected rather than
// silently failing closed.
func evalNullCondition(s *session, expr string) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	v, err := evalNullExpression(s, expr)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errtype.Executionf("", "null datamodel: cond %q is not boolean", expr)
	}
	return b, nil
}

func quotedLiteral(expr string) (string, bool) {
	if len(expr) < 2 {
		return "", false
	}
	quote := expr[0]
	if (quote != '\'' && quote != '"') || expr[len(expr)-1] != quote {
		return "", false
	}
	return expr[1 : len(expr)-1], true
}

func inCallArg(expr string) (string, bool) {
	if !strings.HasPrefix(expr, "In(") || !strings.HasSuffix(expr, ")") {
		return "", false
	}
	arg := strings.TrimSpace(expr[len("In(") : len(expr)-1])
	if id, ok := quotedLiteral(arg); ok {
		return id, true
	}
	return arg, true
}
