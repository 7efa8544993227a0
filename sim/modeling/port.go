package modeling

import "github.com/dosflow/dosflow/sim/payload"

// An InputPort accepts payloads of one tag from at most one edge.
type InputPort struct {
	node  *Node
	tag   *payload.Tag
	index int
	edge  *Edge
}

// Name returns "<node>.<tag>".
func (p *InputPort) Name() string {
	return p.node.Name() + "." + p.tag.Name()
}

// Node returns the owner of the port.
func (p *InputPort) Node() *Node {
	return p.node
}

// Tag returns the tag accepted by the port.
func (p *InputPort) Tag() *payload.Tag {
	return p.tag
}

// Index returns the position of the port in the node's input list.
func (p *InputPort) Index() int {
	return p.index
}

// Edge returns the bound edge, or nil.
func (p *InputPort) Edge() *Edge {
	return p.edge
}

// IsConnected tells if an edge is bound to the port.
func (p *InputPort) IsConnected() bool {
	return p.edge != nil
}

// Bind attaches the edge to the port. It returns false when the port is
// already bound.
func (p *InputPort) Bind(e *Edge) bool {
	if p.edge != nil {
		return false
	}

	p.edge = e

	return true
}

// An OutputPort delivers the payloads of one tag to every bound edge.
type OutputPort struct {
	node   *Node
	tag    *payload.Tag
	index  int
	edges  []*Edge
	fanout int
}

// Name returns "<node>.<tag>".
func (p *OutputPort) Name() string {
	return p.node.Name() + "." + p.tag.Name()
}

// Node returns the owner of the port.
func (p *OutputPort) Node() *Node {
	return p.node
}

// Tag returns the tag produced by the port.
func (p *OutputPort) Tag() *payload.Tag {
	return p.tag
}

// Index returns the position of the port in the node's output list.
func (p *OutputPort) Index() int {
	return p.index
}

// Edges returns the bound edges in connection order.
func (p *OutputPort) Edges() []*Edge {
	return p.edges
}

// Bind attaches one more edge to the port.
func (p *OutputPort) Bind(e *Edge) {
	p.edges = append(p.edges, e)
}

// ExpectFanout declares how many edges the port must end up with. Zero means
// any number.
func (p *OutputPort) ExpectFanout(n int) {
	p.fanout = n
}

// ExpectedFanout returns the declared fan-out, or zero.
func (p *OutputPort) ExpectedFanout() int {
	return p.fanout
}
