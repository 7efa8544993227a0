// Package graph assembles nodes and edges into a validated model and runs it
// tick by tick.
package graph

import (
	"fmt"

	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/naming"
	"github.com/dosflow/dosflow/sim/payload"
)

// A Graph collects nodes and connections. Problems found while connecting are
// kept and reported together by Build.
type Graph struct {
	name   string
	nodes  []*modeling.Node
	byName map[string]*modeling.Node
	edges  []*modeling.Edge
	errs   ValidationErrors
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{
		name:   name,
		byName: make(map[string]*modeling.Node),
	}
}

// Name returns the name of the graph.
func (g *Graph) Name() string {
	return g.name
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*modeling.Node {
	return g.nodes
}

// Edges returns the edges in connection order.
func (g *Graph) Edges() []*modeling.Edge {
	return g.edges
}

// Node finds a node by name.
func (g *Graph) Node(name string) *modeling.Node {
	return g.byName[name]
}

// AddNode wraps a client in a node. Node names must be valid and unique.
func (g *Graph) AddNode(
	name string,
	client modeling.Client,
	rate modeling.RateRatio,
) (*modeling.Node, error) {
	if err := naming.Validate(name); err != nil {
		return nil, &ValidationError{
			Kind: InvalidName, Node: name, Detail: err.Error(),
		}
	}

	if _, found := g.byName[name]; found {
		return nil, &ValidationError{Kind: DuplicateNode, Node: name}
	}

	n := modeling.NewNode(name, client, rate)
	g.nodes = append(g.nodes, n)
	g.byName[name] = n

	return n, nil
}

// MustAddNode is like AddNode but panics on error.
func (g *Graph) MustAddNode(
	name string,
	client modeling.Client,
	rate modeling.RateRatio,
) *modeling.Node {
	n, err := g.AddNode(name, client, rate)
	if err != nil {
		panic(err)
	}

	return n
}

type connectOptions struct {
	discipline modeling.Discipline
	bootstrap  bool
}

// A ConnectOption changes how Connect builds an edge.
type ConnectOption func(*connectOptions)

// WithDiscipline sets the edge discipline. Edges are bounded by default.
func WithDiscipline(d modeling.Discipline) ConnectOption {
	return func(o *connectOptions) {
		o.discipline = d
	}
}

// AsBootstrap makes the edge start with a zero payload and deliver one tick
// late.
func AsBootstrap() ConnectOption {
	return func(o *connectOptions) {
		o.bootstrap = true
	}
}

// Connect binds the output of src with the tag to the input of dst with the
// same tag. The error is also kept for Build.
func (g *Graph) Connect(
	src *modeling.Node,
	tag *payload.Tag,
	dst *modeling.Node,
	opts ...ConnectOption,
) (*modeling.Edge, error) {
	o := connectOptions{discipline: modeling.Bounded}
	for _, opt := range opts {
		opt(&o)
	}

	out, err := findOutput(src, tag)
	if err != nil {
		return nil, g.record(err)
	}

	in, err := findInput(dst, tag)
	if err != nil {
		return nil, g.record(err)
	}

	e := modeling.NewEdge(out, in, o.discipline, o.bootstrap)
	if !in.Bind(e) {
		return nil, g.record(&ValidationError{
			Kind: DuplicateConnection,
			Node: dst.Name(),
			Port: in.Name(),
			Detail: fmt.Sprintf("already fed by %s, refused %s",
				in.Edge().Src().Name(), out.Name()),
		})
	}

	out.Bind(e)
	g.edges = append(g.edges, e)

	return e, nil
}

func (g *Graph) record(err *ValidationError) *ValidationError {
	g.errs = append(g.errs, err)
	return err
}

func findOutput(n *modeling.Node, tag *payload.Tag) (*modeling.OutputPort, *ValidationError) {
	if p := n.OutputByTag(tag); p != nil {
		return p, nil
	}

	for _, p := range n.Outputs() {
		if p.Tag().Name() == tag.Name() {
			return nil, mismatch(n.Name(), p.Name(), p.Tag(), tag)
		}
	}

	return nil, &ValidationError{
		Kind:   UnknownPort,
		Node:   n.Name(),
		Detail: fmt.Sprintf("no output %s", tag),
	}
}

func findInput(n *modeling.Node, tag *payload.Tag) (*modeling.InputPort, *ValidationError) {
	if p := n.InputByTag(tag); p != nil {
		return p, nil
	}

	for _, p := range n.Inputs() {
		if p.Tag().Name() == tag.Name() {
			return nil, mismatch(n.Name(), p.Name(), p.Tag(), tag)
		}
	}

	return nil, &ValidationError{
		Kind:   UnknownPort,
		Node:   n.Name(),
		Detail: fmt.Sprintf("no input %s", tag),
	}
}

func mismatch(node, port string, declared, got *payload.Tag) *ValidationError {
	kind := TagMismatch
	if declared.Len() != got.Len() {
		kind = LengthMismatch
	}

	return &ValidationError{
		Kind:   kind,
		Node:   node,
		Port:   port,
		Detail: fmt.Sprintf("port carries %s, connection uses %s", declared, got),
	}
}
