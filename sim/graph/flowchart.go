package graph

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dosflow/dosflow/sim/modeling"
)

// Flowchart writes the model as a Graphviz digraph. Bootstrap edges are
// dashed and unbounded edges dotted.
func (m *Model) Flowchart(w io.Writer) error {
	return writeFlowchart(w, m.name, m.order, m.edges)
}

// Flowchart writes the graph as a Graphviz digraph, in insertion order. It
// works on graphs that do not validate.
func (g *Graph) Flowchart(w io.Writer) error {
	return writeFlowchart(w, g.name, g.nodes, g.edges)
}

func writeFlowchart(
	w io.Writer,
	name string,
	nodes []*modeling.Node,
	edges []*modeling.Edge,
) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph %q {\n", name)
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [shape=box, fontname=\"Helvetica\"];")

	for _, n := range nodes {
		fmt.Fprintf(bw, "  %q [label=\"%s\\n%s\"];\n",
			n.Name(), n.Name(), n.Rate())
	}

	for _, e := range edges {
		fmt.Fprintf(bw, "  %q -> %q [label=%q%s];\n",
			e.Src().Node().Name(),
			e.Dst().Node().Name(),
			e.Tag().String(),
			edgeStyle(e))
	}

	fmt.Fprintln(bw, "}")

	return bw.Flush()
}

func edgeStyle(e *modeling.Edge) string {
	switch {
	case e.IsBootstrap():
		return ", style=dashed"
	case e.Discipline() == modeling.Unbounded:
		return ", style=dotted"
	case e.Discipline() == modeling.BestEffort:
		return ", color=gray"
	default:
		return ""
	}
}
