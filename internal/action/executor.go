// Package action implements C5, the executable-content executor of
// spec.md §4.5: running the <script>/<assign>/<log>/<if>/<foreach>/<raise>/
// <send>/<cancel> variants defined in package model against one session's
// datamodel, queues, and event target dispatcher.
package action

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/datamodel"
	"github.com/scxmlgo/scxml/internal/errtype"
	"github.com/scxmlgo/scxml/internal/primitives"
	"github.com/scxmlgo/scxml/internal/queue"
	"github.com/scxmlgo/scxml/internal/scheduler"
	"github.com/scxmlgo/scxml/internal/target"
	"github.com/scxmlgo/scxml/model"
)

// Executor runs executable content for exactly one session.
type Executor struct {
	SessionID  string
	Datamodel  *datamodel.Engine
	Raiser     *queue.Raiser
	Dispatcher *target.Dispatcher
	Logger     zerolog.Logger
}

// Run executes a block of executable content (an <onentry>, <onexit>,
// transition body, or nested <if>/<foreach> body). On the first action that
// fails, the remaining actions in items are skipped and an error.execution
// or error.communication event is raised on the internal queue — per
// spec.md §4.5, a failing action never aborts the whole interpreter.
func (ex *Executor) Run(items []model.Executable) {
	if err := ex.execBlock(items); err != nil {
		ex.raiseError(err)
	}
}

func (ex *Executor) execBlock(items []model.Executable) error {
	for _, item := range items {
		if err := ex.exec(item); err != nil {
			return err
		}
	}
	return nil
}

func (ex *Executor) exec(item model.Executable) error {
	switch a := item.(type) {
	case model.Script:
		return ex.Datamodel.ExecuteScript(ex.SessionID, a.Source)
	case model.Assign:
		return ex.execAssign(a)
	case model.Log:
		return ex.execLog(a)
	case model.If:
		return ex.execIf(a)
	case model.Foreach:
		return ex.execForeach(a)
	case model.Raise:
		return ex.execRaise(a)
	case model.Send:
		return ex.execSend(a)
	case model.Cancel:
		return ex.execCancel(a)
	default:
		return fmt.Errorf("action: unknown executable kind %T", item)
	}
}

func (ex *Executor) execAssign(a model.Assign) error {
	if reservedSystemVars[a.Location] {
		return errtype.Executionf("", "assign: %q is a read-only system variable", a.Location)
	}
	script := fmt.Sprintf("%s = (%s);", a.Location, a.Expr)
	if err := ex.Datamodel.ExecuteScript(ex.SessionID, script); err != nil {
		return err
	}
	return nil
}

func (ex *Executor) execLog(a model.Log) error {
	var value any
	if a.Expr != "" {
		v, err := ex.Datamodel.EvaluateExpression(ex.SessionID, a.Expr)
		if err != nil {
			return err
		}
		value = v
	}
	ex.Logger.Info().Str("label", a.Label).Interface("value", value).Str("session", ex.SessionID).Msg("scxml log")
	return nil
}

func (ex *Executor) execIf(a model.If) error {
	for _, branch := range a.Branches {
		if branch.Cond == "" {
			return ex.execBlock(branch.Body)
		}
		matched, err := ex.Datamodel.EvaluateCondition(ex.SessionID, branch.Cond)
		if err != nil {
			return err
		}
		if matched {
			return ex.execBlock(branch.Body)
		}
	}
	return nil
}

func (ex *Executor) execRaise(a model.Raise) error {
	var data any
	if a.Data != "" {
		v, err := ex.Datamodel.EvaluateExpression(ex.SessionID, a.Data)
		if err != nil {
			return err
		}
		data = v
	}
	ex.Raiser.Raise(primitives.NewInternalEvent(a.Event, data), queue.PriorityInternal, ex.SessionID, "", "")
	return nil
}

func (ex *Executor) execCancel(a model.Cancel) error {
	sendID := a.SendID
	if a.SendIDExpr != "" {
		v, err := ex.Datamodel.EvaluateExpression(ex.SessionID, a.SendIDExpr)
		if err != nil {
			return errtype.Executionf("", "evaluating cancel sendidexpr: %v", err)
		}
		sendID = fmt.Sprint(v)
	}
	ex.Dispatcher.Cancel(sendID)
	return nil
}

func (ex *Executor) execSend(a model.Send) error {
	sendID := a.ID
	if sendID == "" {
		sendID = uuid.NewString()
	}
	if a.IDLocation != "" {
		if err := ex.Datamodel.SetVariable(ex.SessionID, a.IDLocation, sendID); err != nil {
			return errtype.Execution(sendID, err)
		}
	}

	eventName := a.Event
	if a.EventExpr != "" {
		v, err := ex.Datamodel.EvaluateExpression(ex.SessionID, a.EventExpr)
		if err != nil {
			return errtype.Execution(sendID, err)
		}
		eventName = fmt.Sprint(v)
	}

	targetURI := a.Target
	if a.TargetExpr != "" {
		v, err := ex.Datamodel.EvaluateExpression(ex.SessionID, a.TargetExpr)
		if err != nil {
			return errtype.Execution(sendID, err)
		}
		targetURI = fmt.Sprint(v)
	}

	delay := scheduler.ParseDelay(a.Delay)
	if a.DelayExpr != "" {
		v, err := ex.Datamodel.EvaluateExpression(ex.SessionID, a.DelayExpr)
		if err != nil {
			return errtype.Execution(sendID, err)
		}
		delay = scheduler.ParseDelay(fmt.Sprint(v))
	}

	data, err := ex.buildSendData(a)
	if err != nil {
		return errtype.Execution(sendID, err)
	}

	ev := primitives.NewEvent(eventName, data)
	ev.SendID = sendID
	ev.OriginType = a.Type
	ev.Origin = ex.SessionID

	if _, err := ex.Dispatcher.Dispatch(context.Background(), ex.SessionID, ev, targetURI, delay, sendID); err != nil {
		if target.IsInvalidTarget(err) {
			return errtype.Execution(sendID, err)
		}
		return errtype.Communication(sendID, err)
	}
	return nil
}

func (ex *Executor) buildSendData(a model.Send) (any, error) {
	if len(a.Params) == 0 && len(a.Namelist) == 0 {
		if a.Content == "" {
			return nil, nil
		}
		if v, err := ex.Datamodel.EvaluateExpression(ex.SessionID, a.Content); err == nil {
			return v, nil
		}
		return a.Content, nil
	}

	data := make(map[string]any, len(a.Params)+len(a.Namelist))
	for _, name := range a.Namelist {
		v, found, err := ex.Datamodel.GetVariable(ex.SessionID, name)
		if err != nil {
			return nil, err
		}
		if found {
			data[name] = v
		}
	}
	for _, p := range a.Params {
		v, err := ex.resolveParam(p)
		if err != nil {
			return nil, err
		}
		data[p.Name] = v
	}
	return data, nil
}

func (ex *Executor) resolveParam(p *model.Param) (any, error) {
	if p.Expr != "" {
		return ex.Datamodel.EvaluateExpression(ex.SessionID, p.Expr)
	}
	if p.Location != "" {
		v, _, err := ex.Datamodel.GetVariable(ex.SessionID, p.Location)
		return v, err
	}
	return nil, nil
}

func (ex *Executor) raiseError(err error) {
	var typed *errtype.Error
	sendID := ""
	communication := false
	if errtype.As(err, &typed) {
		sendID = typed.SendID
		communication = typed.Kind == errtype.Communication
	}
	var ev primitives.Event
	if communication {
		ev = primitives.ErrorCommunication(err.Error(), sendID)
	} else {
		ev = primitives.ErrorExecution(err.Error(), sendID)
	}
	ex.Logger.Debug().Err(err).Str("session", ex.SessionID).Msg("scxml action failed, raising error event")
	ex.Raiser.Raise(ev, queue.PriorityInternal, ex.SessionID, sendID, "")
}
