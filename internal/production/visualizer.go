package production

import (
	"bytes"
	"fmt"
)

// DefaultVisualizer is the stdlib-only implementation of core.Visualizer.
// core.Visualizer only carries a model name and the currently active state
// ids (not the whole model tree, which the interpreter never hands back
// out once built) so, unlike the teacher's version, this renders the
// active configuration rather than the full transition graph.
type DefaultVisualizer struct{}

// ExportDOT generates Graphviz DOT source highlighting the states in current.
func (v *DefaultVisualizer) ExportDOT(name string, current []string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n  rankdir=LR;\n  node [shape=box, fontsize=10, style=rounded];\n", name)
	for _, id := range current {
		fmt.Fprintf(&buf, "  %q [style=filled fillcolor=lightgreen];\n", id)
	}
	buf.WriteString("}\n")
	return buf.String()
}
