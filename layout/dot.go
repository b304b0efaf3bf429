package layout

import (
	"bufio"
	"fmt"
	"io"
)

// WriteDOT writes the dependency graph in Graphviz DOT form
// Edges point from a node to the node it depends on; dirty nodes are filled
func (e *Engine) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph layout {")
	fmt.Fprintln(bw, "  rankdir=BT;")
	fmt.Fprintln(bw, `  node [shape=box, fontname="monospace"];`)

	order := e.graph.TopoOrder()
	for _, id := range order {
		n := &e.nodes[id]
		attrs := ""
		if n.dirty {
			attrs = `, style=filled, fillcolor="#f4cccc"`
		}
		fmt.Fprintf(bw, "  n%d [label=%q%s];\n", id, e.Label(id)+"\n"+n.rect.String(), attrs)
	}
	for _, id := range order {
		for _, d := range e.graph.Dependencies(id) {
			fmt.Fprintf(bw, "  n%d -> n%d;\n", id, d)
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
