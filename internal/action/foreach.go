package action

import (
	"fmt"
	"regexp"

	"github.com/scxmlgo/scxml/model"
)

// identifierPattern mirrors the ECMAScript identifier grammar subset that
// original_source's ForeachValidator.h checks item/index against before
// ever touching the datamodel, so a malformed <foreach> fails the whole
// block instead of throwing mid-iteration.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var reservedSystemVars = map[string]bool{
	"_event": true, "_sessionid": true, "_name": true, "_ioprocessors": true, "In": true,
}

func validateForeachIdentifiers(item, index string) error {
	if !identifierPattern.MatchString(item) {
		return fmt.Errorf("foreach: item %q is not a valid identifier", item)
	}
	if reservedSystemVars[item] {
		return fmt.Errorf("foreach: item %q shadows a system variable", item)
	}
	if index != "" {
		if !identifierPattern.MatchString(index) {
			return fmt.Errorf("foreach: index %q is not a valid identifier", index)
		}
		if reservedSystemVars[index] {
			return fmt.Errorf("foreach: index %q shadows a system variable", index)
		}
	}
	return nil
}

func (ex *Executor) execForeach(a model.Foreach) error {
	if err := validateForeachIdentifiers(a.Item, a.Index); err != nil {
		return err
	}

	v, err := ex.Datamodel.EvaluateExpression(ex.SessionID, a.Array)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("foreach: array expression %q did not evaluate to an array", a.Array)
	}

	// Snapshot the slice header up front: W3C requires iterating the
	// collection as it stood when <foreach> started, even if the body
	// reassigns the source variable mid-loop.
	snapshot := make([]any, len(items))
	copy(snapshot, items)

	for i, elem := range snapshot {
		if err := ex.Datamodel.SetVariable(ex.SessionID, a.Item, elem); err != nil {
			return err
		}
		if a.Index != "" {
			if err := ex.Datamodel.SetVariable(ex.SessionID, a.Index, i); err != nil {
				return err
			}
		}
		if err := ex.execBlock(a.Body); err != nil {
			return err
		}
	}
	return nil
}
