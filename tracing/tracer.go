// Package tracing observes a running model through hooks: node activations
// and stalls, payloads pushed onto edges, and Prometheus metrics of both.
package tracing

import (
	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/payload"
)

// A Tracer is told what the nodes and edges of a model do. Tracers that are
// only interested in some of the events leave the other methods empty.
type Tracer interface {
	StartActivation(node *modeling.Node, tick uint64)
	EndActivation(node *modeling.Node, tick uint64, dropped []*modeling.CapacityError)
	Stall(node *modeling.Node, tick uint64)
	Push(edge *modeling.Edge, tick uint64, p *payload.Payload)
}

// NamedHookable represents something both have a name and can be hooked.
type NamedHookable interface {
	hooking.Hookable
	Name() string
}

// NodeFilter selects the nodes a tracer is interested in.
type NodeFilter func(n *modeling.Node) bool

func (f NodeFilter) keep(n *modeling.Node) bool {
	return f == nil || f(n)
}
