package graph

import (
	"fmt"

	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/payload"
)

// An OutputBuilder connects one output to several inputs fluently:
//
//	g.Output(plant, M1Nodes).Multiplex(2).Into(logger).Into(control)
//
// Errors are kept and reported by Build.
type OutputBuilder struct {
	graph      *Graph
	src        *modeling.Node
	tag        *payload.Tag
	discipline modeling.Discipline
	bootstrap  bool
}

// Output starts a fluent connection from the output of src with the tag.
func (g *Graph) Output(src *modeling.Node, tag *payload.Tag) *OutputBuilder {
	return &OutputBuilder{
		graph:      g,
		src:        src,
		tag:        tag,
		discipline: modeling.Bounded,
	}
}

// Multiplex declares that the output feeds exactly n inputs.
func (b *OutputBuilder) Multiplex(n int) *OutputBuilder {
	out, err := findOutput(b.src, b.tag)
	if err != nil {
		b.graph.record(err)
		return b
	}

	if n < 1 {
		b.graph.record(&ValidationError{
			Kind:   InvalidMultiplex,
			Node:   b.src.Name(),
			Port:   out.Name(),
			Detail: fmt.Sprintf("multiplex %d", n),
		})

		return b
	}

	out.ExpectFanout(n)

	return b
}

// Bootstrap makes the following connections bootstrap edges.
func (b *OutputBuilder) Bootstrap() *OutputBuilder {
	b.bootstrap = true
	return b
}

// Unbounded makes the following connections unbounded.
func (b *OutputBuilder) Unbounded() *OutputBuilder {
	b.discipline = modeling.Unbounded
	return b
}

// BestEffort makes the following connections overwrite when full.
func (b *OutputBuilder) BestEffort() *OutputBuilder {
	b.discipline = modeling.BestEffort
	return b
}

// Into connects the output to the input of dst with the same tag.
func (b *OutputBuilder) Into(dst *modeling.Node) *OutputBuilder {
	opts := []ConnectOption{WithDiscipline(b.discipline)}
	if b.bootstrap {
		opts = append(opts, AsBootstrap())
	}

	_, _ = b.graph.Connect(b.src, b.tag, dst, opts...)

	return b
}
