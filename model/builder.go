package model

import "strings"

// Builder provides a fluent, code-first way to assemble a Model without a
// parser — used by tests and by embedders who describe their statechart in
// Go rather than SCXML. The shape follows the teacher's MachineBuilder
// (comalice/statechartx/internal/primitives/machinebuilder.go): a stack of
// "current" StateNode so that nested Compound/Parallel calls read like the
// indentation of the XML they stand in for.
type Builder struct {
	model *Model
	stack []*StateNode
}

// NewBuilder starts a Model builder rooted at a synthetic top-level compound
// state named rootID, whose default initial child is initialID.
func NewBuilder(rootID, initialID string) *Builder {
	root := &StateNode{ID: rootID, Type: Compound, InitialChild: initialID}
	b := &Builder{
		model: &Model{Root: root, Datamodel: "ecmascript"},
		stack: []*StateNode{root},
	}
	return b
}

func (b *Builder) top() *StateNode {
	return b.stack[len(b.stack)-1]
}

// State appends an atomic child of the current state and pushes it onto the
// nesting stack, so following calls (On, OnEntry, ...) apply to that child;
// call Up to return to the parent.
func (b *Builder) State(id string) *Builder {
	child := &StateNode{ID: id, Type: Atomic}
	top := b.top()
	child.Parent = top
	top.Children = append(top.Children, child)
	b.stack = append(b.stack, child)
	return b
}

// Final appends a <final> child of the current state and positions on it,
// as State does.
func (b *Builder) Final(id string) *Builder {
	b.State(id)
	b.top().Type = Final
	b.top().IsFinal = true
	return b
}

// Compound descends into a new compound child state with the given default initial child.
func (b *Builder) Compound(id, initial string) *Builder {
	b.State(id)
	b.top().Type = Compound
	b.top().InitialChild = initial
	return b
}

// Parallel descends into a new parallel child state.
func (b *Builder) Parallel(id string) *Builder {
	b.State(id)
	b.top().Type = Parallel
	return b
}

// History adds a history pseudo-state child (shallow or deep).
func (b *Builder) History(id string, deep bool) *Builder {
	b.State(id)
	b.top().Type = History
	if deep {
		b.top().HistoryType = Deep
	} else {
		b.top().HistoryType = Shallow
	}
	return b.Up()
}

// Up pops back to the parent of the current state, mirroring the closing
// tag of whatever StateNode we just finished describing.
func (b *Builder) Up() *Builder {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	}
	return b
}

// OnEntry appends executable content to run whenever the current state is entered.
func (b *Builder) OnEntry(actions ...Executable) *Builder {
	b.top().OnEntry = append(b.top().OnEntry, actions...)
	return b
}

// OnExit appends executable content to run whenever the current state is exited.
func (b *Builder) OnExit(actions ...Executable) *Builder {
	b.top().OnExit = append(b.top().OnExit, actions...)
	return b
}

// Data attaches a <data> item to the current state: GlobalScope when the
// builder is positioned on the root, StateScope otherwise.
func (b *Builder) Data(id, expr string) *Builder {
	scope := StateScope
	if b.top() == b.model.Root {
		scope = GlobalScope
	}
	b.top().DataItems = append(b.top().DataItems, &DataItem{ID: id, Expr: expr, Scope: scope})
	return b
}

// Transition appends a transition from the current state.
func (b *Builder) Transition(t *TransitionNode) *Builder {
	t.Source = b.top()
	b.top().Transitions = append(b.top().Transitions, t)
	return b
}

// On is sugar for the common case: Transition on a single event descriptor
// to a single target, with an optional guard.
func (b *Builder) On(event, target string, guard string, actions ...Executable) *Builder {
	return b.Transition(&TransitionNode{
		EventDescriptors: splitNonEmpty(event),
		Guard:            guard,
		Targets:          nonEmptySlice(target),
		Actions:          actions,
	})
}

// Eventless adds an eventless (NULL) transition guarded by guard.
func (b *Builder) Eventless(target string, guard string, actions ...Executable) *Builder {
	return b.Transition(&TransitionNode{
		Guard:   guard,
		Targets: nonEmptySlice(target),
		Actions: actions,
	})
}

// Invoke attaches an <invoke> to the current state.
func (b *Builder) Invoke(inv *InvokeNode) *Builder {
	b.top().Invokes = append(b.top().Invokes, inv)
	return b
}

// Build finalizes, attaches, and validates the model, returning it or the
// first structural error encountered.
func (b *Builder) Build() (*Model, error) {
	if b.model.Initial == "" {
		b.model.Initial = resolveDefaultInitialID(b.model.Root)
	}
	if err := b.model.Attach(); err != nil {
		return nil, err
	}
	if err := b.model.Validate(); err != nil {
		return nil, err
	}
	return b.model, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func nonEmptySlice(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
