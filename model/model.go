// Package model defines the immutable, parser-produced state machine tree:
// states, transitions, data items, invokes, and executable content. A Model
// is built once (by an external SCXML/XInclude parser, or by the builder in
// this package for tests and embedded callers) and never mutated again;
// the interpreter attaches runtime indices to it as side tables instead of
// editing the tree in place.
package model

import (
	"fmt"
	"strings"
)

// StateType identifies the kind of a StateNode.
type StateType int

const (
	Atomic StateType = iota
	Compound
	Parallel
	Final
	History
)

func (t StateType) String() string {
	switch t {
	case Atomic:
		return "atomic"
	case Compound:
		return "compound"
	case Parallel:
		return "parallel"
	case Final:
		return "final"
	case History:
		return "history"
	default:
		return "unknown"
	}
}

// HistoryType distinguishes shallow vs. deep history states.
type HistoryType int

const (
	NoHistory HistoryType = iota
	Shallow
	Deep
)

// TransitionType distinguishes external from internal (targetless-within-self) transitions.
type TransitionType int

const (
	External TransitionType = iota
	Internal
)

// StateNode is one node of the immutable model tree. Document order of
// Children and Transitions is semantically significant for conflict
// resolution (§4.7) and is preserved exactly as appended.
type StateNode struct {
	ID           string
	Type         StateType
	Parent       *StateNode
	Children     []*StateNode
	Transitions  []*TransitionNode
	OnEntry      []Executable
	OnExit       []Executable
	Invokes      []*InvokeNode
	DataItems    []*DataItem
	InitialChild string // explicit <initial> or first child in document order
	HistoryType  HistoryType
	IsFinal      bool
	DoneData     *DoneData
}

// DoneData describes the <donedata> of a <final> state or a top-level session end.
type DoneData struct {
	Content Executable // a <content> expression/inline, evaluated once
	Params  []*Param
}

// Param is a <param name=... expr=.../> or <param name=... location=.../> pair
// used by <donedata>, <send> and <invoke>.
type Param struct {
	Name     string
	Expr     string
	Location string
}

// TransitionNode is one outgoing edge of a StateNode.
type TransitionNode struct {
	Source           *StateNode
	EventDescriptors []string // space-separated patterns already split; an empty slice means eventless
	Guard            string   // ECMAScript boolean expression, "" means unconditional
	Targets          []string // target state IDs; empty means a targetless/internal action-only transition
	Actions          []Executable
	Type             TransitionType
}

// IsEventless reports whether this transition has no event descriptors (fires on NULL events).
func (t *TransitionNode) IsEventless() bool {
	return len(t.EventDescriptors) == 0
}

// MatchesEvent reports whether the given event name matches this transition's
// descriptors, following SCXML's space-separated-pattern, "*" wildcard, and
// "prefix.*" segment-match rules.
func (t *TransitionNode) MatchesEvent(eventName string) bool {
	for _, d := range t.EventDescriptors {
		if matchesDescriptor(d, eventName) {
			return true
		}
	}
	return false
}

func matchesDescriptor(descriptor, eventName string) bool {
	if descriptor == "*" {
		return true
	}
	if descriptor == eventName {
		return true
	}
	if strings.HasSuffix(descriptor, ".*") {
		prefix := strings.TrimSuffix(descriptor, ".*")
		return eventName == prefix || strings.HasPrefix(eventName, prefix+".")
	}
	if strings.HasSuffix(descriptor, "*") && !strings.HasSuffix(descriptor, ".*") {
		// bare prefix wildcard form, e.g. "error*"
		prefix := strings.TrimSuffix(descriptor, "*")
		return strings.HasPrefix(eventName, prefix)
	}
	return false
}

// DataItem is a <data> element: exactly one of Expr/Content/Src is populated by the parser.
type DataItem struct {
	ID      string
	Expr    string
	Content string
	Src     string
	Scope   DataScope
}

// DataScope distinguishes top-level (session-global) data from state-local data.
type DataScope int

const (
	GlobalScope DataScope = iota
	StateScope
)

// InvokeNode is an <invoke> element.
type InvokeNode struct {
	ID           string
	IDLocation   string
	Type         string // usually "scxml"
	Src          string
	Content      *Model // inline child model, when Src is empty
	Params       []*Param
	Namelist     []string
	Autoforward  bool
	Finalize     []Executable
	DeclaringID  string // the StateNode.ID this invoke is attached to, filled by Attach
}

// Binding describes the datamodel binding mode of a document.
type Binding int

const (
	EarlyBinding Binding = iota
	LateBinding
)

// Model is the whole parsed document: indexable by ID, with the root state
// tree accessible via Root. Immutable after Attach/Validate runs.
type Model struct {
	Name       string
	Initial    string // initial state ID, or "" to use first child of Root in document order
	Datamodel  string // "ecmascript" or "null"
	Binding    Binding
	Root       *StateNode
	byID       map[string]*StateNode
	transitive map[string][]*StateNode // ancestor chains, id -> ancestors root..self
}

// Attach walks the tree, assigns Parent pointers (if not already set),
// indexes every state by ID, stamps InvokeNode.DeclaringID, and precomputes
// ancestor chains. It must be called once after the tree is fully built and
// before the model is handed to an interpreter.
func (m *Model) Attach() error {
	m.byID = make(map[string]*StateNode)
	m.transitive = make(map[string][]*StateNode)
	var walk func(n *StateNode, parent *StateNode, ancestors []*StateNode) error
	walk = func(n *StateNode, parent *StateNode, ancestors []*StateNode) error {
		if n.ID == "" {
			return fmt.Errorf("model: state with empty ID under parent %v", parentID(parent))
		}
		if _, dup := m.byID[n.ID]; dup {
			return fmt.Errorf("model: duplicate state id %q", n.ID)
		}
		n.Parent = parent
		chain := append(append([]*StateNode{}, ancestors...), n)
		m.byID[n.ID] = n
		m.transitive[n.ID] = chain
		for _, inv := range n.Invokes {
			inv.DeclaringID = n.ID
			if inv.Content != nil {
				if err := inv.Content.Attach(); err != nil {
					return fmt.Errorf("model: invoke %q inline content: %w", inv.ID, err)
				}
			}
		}
		for _, c := range n.Children {
			if err := walk(c, n, chain); err != nil {
				return err
			}
		}
		return nil
	}
	if m.Root == nil {
		return fmt.Errorf("model: root state required")
	}
	if err := walk(m.Root, nil, nil); err != nil {
		return err
	}
	if m.Initial == "" {
		m.Initial = resolveDefaultInitialID(m.Root)
	}
	return nil
}

func parentID(s *StateNode) string {
	if s == nil {
		return "<root>"
	}
	return s.ID
}

func resolveDefaultInitialID(n *StateNode) string {
	if n.InitialChild != "" {
		return n.InitialChild
	}
	if len(n.Children) > 0 {
		return n.Children[0].ID
	}
	return n.ID
}

// State looks up a state by ID.
func (m *Model) State(id string) (*StateNode, bool) {
	s, ok := m.byID[id]
	return s, ok
}

// MustState panics if the id is not found; intended for use after Validate
// has already confirmed referential integrity (e.g. inside the interpreter's
// hot path where a missing id is a programming error, not user input).
func (m *Model) MustState(id string) *StateNode {
	s, ok := m.byID[id]
	if !ok {
		panic(fmt.Sprintf("model: unknown state id %q", id))
	}
	return s
}

// Ancestors returns the chain from the root to s, inclusive, in root-first order.
func (m *Model) Ancestors(s *StateNode) []*StateNode {
	return m.transitive[s.ID]
}

// IsDescendant reports whether s is a (possibly indirect) child of ancestor.
func (m *Model) IsDescendant(s, ancestor *StateNode) bool {
	for cur := s.Parent; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// IsOrAncestor reports whether ancestor equals s or is an ancestor of s.
func (m *Model) IsOrAncestor(ancestor, s *StateNode) bool {
	return ancestor == s || m.IsDescendant(s, ancestor)
}

// Validate checks referential integrity beyond what Attach already enforces:
// every compound/parallel state has children, every compound state's
// initial child exists, every history node has a parent, every transition
// target exists, and the model's initial state exists. The datamodel name
// is not checked here.
func (m *Model) Validate() error {
	for id, s := range m.byID {
		switch s.Type {
		case Compound, Parallel:
			if len(s.Children) == 0 {
				return fmt.Errorf("model: %s state %q must have children", s.Type, id)
			}
			if s.Type == Compound {
				init := s.InitialChild
				if init == "" {
					init = s.Children[0].ID
				}
				if _, ok := m.byID[init]; !ok {
					return fmt.Errorf("model: state %q initial child %q not found", id, init)
				}
			}
		case History:
			if s.Parent == nil {
				return fmt.Errorf("model: history state %q must have a parent", id)
			}
		}
		for _, t := range s.Transitions {
			for _, target := range t.Targets {
				if _, ok := m.byID[target]; !ok {
					return fmt.Errorf("model: state %q transition target %q not found", id, target)
				}
			}
		}
	}
	if _, ok := m.byID[m.Initial]; !ok {
		return fmt.Errorf("model: initial state %q not found", m.Initial)
	}
	return nil
}

// AtomicDescendants returns every childless descendant of s (atomic, final,
// or history pseudo-state) in document order, or s itself if it has no
// children.
func (m *Model) AtomicDescendants(s *StateNode) []*StateNode {
	var out []*StateNode
	var walk func(n *StateNode)
	walk = func(n *StateNode) {
		if len(n.Children) == 0 {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(s)
	return out
}
