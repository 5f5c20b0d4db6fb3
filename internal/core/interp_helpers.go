// Package core implements C7, the interpreter core of spec.md §4.7: the
// macrostep/microstep SCXML algorithm, configuration management, and
// session lifecycle. Grounded on the teacher's internal/core package
// (comalice/statechartx): the shape of these small composable helper
// functions (computeLCCA/getExitStates/getEntryStates/resolveInitialLeaf)
// is kept from the teacher's interpreter.go, rewritten against pointer-based
// *model.StateNode instead of the teacher's dot-separated path strings —
// the new model already carries parent pointers and precomputed ancestor
// chains, so string path algebra is unneeded.
package core

import (
	"github.com/scxmlgo/scxml/model"
)

// lcca returns the innermost proper ancestor of b that is a itself or an
// ancestor of a. It never returns b, but it returns a when a is a proper
// ancestor of b (transitionDomain relies on this for internal transitions).
// The state type of the result (compound or parallel) is not checked.
func lcca(m *model.Model, a, b *model.StateNode) *model.StateNode {
	ancestorsA := m.Ancestors(a)
	setA := make(map[*model.StateNode]bool, len(ancestorsA))
	for _, s := range ancestorsA {
		setA[s] = true
	}
	ancestorsB := m.Ancestors(b)
	for i := len(ancestorsB) - 2; i >= 0; i-- { // skip b itself
		if setA[ancestorsB[i]] {
			return ancestorsB[i]
		}
	}
	return nil
}

// transitionDomain is the SCXML "transition domain": the LCCA of the
// transition's source and all of its targets, or the source's parent for a
// targetless transition (which exits/re-enters nothing but the source if
// it's an external self-transition).
func transitionDomain(m *model.Model, t *model.TransitionNode) *model.StateNode {
	if len(t.Targets) == 0 {
		return t.Source.Parent
	}
	domain := t.Source
	for _, targetID := range t.Targets {
		target, ok := m.State(targetID)
		if !ok {
			continue
		}
		anc := lcca(m, domain, target)
		if anc == nil {
			anc = lcca(m, target, domain)
		}
		if anc == nil {
			return m.Root
		}
		domain = anc
	}
	if domain == t.Source && t.Type == model.External {
		return t.Source.Parent
	}
	return domain
}

// exitSetFor returns every currently-active state that must exit for t to
// fire, given the current configuration: every active descendant of t's
// domain, the domain's active descendants included, ordered so a child
// always appears before its parent (innermost first).
func exitSetFor(m *model.Model, domain *model.StateNode, configuration map[string]bool) []*model.StateNode {
	var out []*model.StateNode
	var walk func(n *model.StateNode)
	walk = func(n *model.StateNode) {
		for _, c := range n.Children {
			walk(c)
		}
		if configuration[n.ID] && n != domain {
			out = append(out, n)
		}
	}
	walk(domain)
	return out
}

// entryPath returns the chain of states from (but excluding) domain down to
// target, outer-first, for entering target as part of a transition whose
// domain is domain. A history pseudo-state is never itself entered: its
// resolved leaves live in its parent's subtree, so the chain is computed
// against the parent instead.
func entryPath(m *model.Model, domain, target *model.StateNode) []*model.StateNode {
	if target.Type == model.History {
		target = target.Parent
	}
	chain := m.Ancestors(target)
	var out []*model.StateNode
	seenDomain := domain == nil
	for _, s := range chain {
		if seenDomain {
			out = append(out, s)
			continue
		}
		if s == domain {
			seenDomain = true
		}
	}
	return out
}

// resolveInitialLeaf recurses from n down through default initial children
// (or a history state's recorded/default restoration) to the set of atomic
// leaves that must actually be entered, expanding parallel regions into all
// of their children.
func resolveInitialLeaf(m *model.Model, n *model.StateNode, hist *HistoryManager) []*model.StateNode {
	switch n.Type {
	case model.Atomic, model.Final:
		return []*model.StateNode{n}
	case model.Parallel:
		var out []*model.StateNode
		for _, c := range n.Children {
			out = append(out, resolveInitialLeaf(m, c, hist)...)
		}
		return out
	case model.Compound:
		child := firstCompoundChild(n)
		if child == nil {
			return []*model.StateNode{n}
		}
		return resolveInitialLeaf(m, child, hist)
	case model.History:
		if hist != nil {
			if ids, ok := hist.Restore(n.ID, n.HistoryType == model.Deep); ok {
				var out []*model.StateNode
				for _, id := range ids {
					if s, ok := m.State(id); ok {
						out = append(out, s)
					}
				}
				if len(out) > 0 {
					return out
				}
			}
		}
		parent := n.Parent
		if parent == nil {
			return nil
		}
		child := firstCompoundChild(parent)
		if child == nil {
			return nil
		}
		return resolveInitialLeaf(m, child, hist)
	default:
		return []*model.StateNode{n}
	}
}

func firstCompoundChild(n *model.StateNode) *model.StateNode {
	if n.InitialChild != "" {
		for _, c := range n.Children {
			if c.ID == n.InitialChild {
				return c
			}
		}
	}
	for _, c := range n.Children {
		if c.Type != model.History {
			return c
		}
	}
	if len(n.Children) > 0 {
		return n.Children[0]
	}
	return nil
}

// ancestorsFull returns the full proper-ancestor chain of n (excluding n),
// innermost first — the reverse and trimmed form of Model.Ancestors, handy
// for entry-set completion below a newly-entered compound/parallel state.
func ancestorsFull(m *model.Model, n *model.StateNode) []*model.StateNode {
	chain := m.Ancestors(n)
	out := make([]*model.StateNode, 0, len(chain)-1)
	for i := len(chain) - 2; i >= 0; i-- {
		out = append(out, chain[i])
	}
	return out
}
