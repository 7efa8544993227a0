package modeling

import (
	"errors"
	"fmt"

	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/naming"
	"github.com/dosflow/dosflow/sim/payload"
)

// HookPosBeforeActivation marks the start of a node activation.
var HookPosBeforeActivation = &hooking.HookPos{Name: "Before Activation"}

// HookPosAfterActivation marks the end of a node activation.
var HookPosAfterActivation = &hooking.HookPos{Name: "After Activation"}

// HookPosNodeStall marks a tick on which a node could not run because one of
// its bounded outgoing edges was full.
var HookPosNodeStall = &hooking.HookPos{Name: "Node Stall"}

// ErrWrongTag is returned when a client writes a payload whose tag is not the
// tag of the port.
var ErrWrongTag = errors.New("wrong tag")

// NodeState is where a node is in its gather/emit cycle.
type NodeState int

// Node states.
const (
	Idle NodeState = iota
	Gathering
	Ready
	Emitting
)

func (s NodeState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Gathering:
		return "Gathering"
	case Ready:
		return "Ready"
	case Emitting:
		return "Emitting"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// A Node drives a client at a rate ratio.
type Node struct {
	naming.NamedBase
	hooking.HookableBase

	client  Client
	rate    RateRatio
	inputs  []*InputPort
	outputs []*OutputPort

	state    NodeState
	gathers  int
	holdLeft int
	held     []*payload.Payload

	activations uint64
	emissions   uint64
	stalls      uint64
}

// NewNode creates a node with one port per client input and output tag.
func NewNode(name string, client Client, rate RateRatio) *Node {
	naming.NameMustBeValid(name)

	n := &Node{
		NamedBase: naming.MakeNamedBase(name),
		client:    client,
		rate:      rate,
	}

	for i, t := range client.Inputs() {
		n.inputs = append(n.inputs, &InputPort{node: n, tag: t, index: i})
	}

	for i, t := range client.Outputs() {
		n.outputs = append(n.outputs, &OutputPort{node: n, tag: t, index: i})
	}

	n.held = make([]*payload.Payload, len(n.outputs))

	return n
}

// Client returns the client driven by the node.
func (n *Node) Client() Client {
	return n.client
}

// Rate returns the rate ratio of the node.
func (n *Node) Rate() RateRatio {
	return n.rate
}

// Inputs returns the input ports in declaration order.
func (n *Node) Inputs() []*InputPort {
	return n.inputs
}

// Outputs returns the output ports in declaration order.
func (n *Node) Outputs() []*OutputPort {
	return n.outputs
}

// InputByTag finds the input port of a tag.
func (n *Node) InputByTag(tag *payload.Tag) *InputPort {
	for _, p := range n.inputs {
		if p.tag == tag {
			return p
		}
	}

	return nil
}

// OutputByTag finds the output port of a tag.
func (n *Node) OutputByTag(tag *payload.Tag) *OutputPort {
	for _, p := range n.outputs {
		if p.tag == tag {
			return p
		}
	}

	return nil
}

// IsTerminal tells if the node produces nothing.
func (n *Node) IsTerminal() bool {
	return len(n.outputs) == 0
}

// State returns the state the node is in between activations.
func (n *Node) State() NodeState {
	return n.state
}

// Activations returns how many ticks the node ran on.
func (n *Node) Activations() uint64 {
	return n.activations
}

// Emissions returns how many ticks the node pushed at least one payload on.
func (n *Node) Emissions() uint64 {
	return n.emissions
}

// Stalls returns how many ticks the node was blocked by backpressure.
func (n *Node) Stalls() uint64 {
	return n.stalls
}

// Reset clears the gathering state and delivers the defaults of unconnected
// inputs. It is called once before the first tick.
func (n *Node) Reset() {
	n.state = Idle
	n.gathers = 0
	n.holdLeft = 0
	n.held = make([]*payload.Payload, len(n.outputs))

	defaulter, ok := n.client.(InputDefaulter)
	if !ok {
		return
	}

	for _, in := range n.inputs {
		if in.IsConnected() {
			continue
		}

		if p := defaulter.DefaultInput(in.tag); p != nil {
			n.client.Read(p)
		}
	}
}

// Blocked tells if a bounded outgoing edge is still full.
func (n *Node) Blocked() bool {
	for _, out := range n.outputs {
		for _, e := range out.edges {
			if e.discipline == Bounded && !e.CanPush() {
				return true
			}
		}
	}

	return false
}

// Activate runs the node for one tick. Dropped payloads of best-effort edges
// are returned; they do not stop the activation. A returned error is fatal
// to the run.
func (n *Node) Activate(tick uint64) (dropped []*CapacityError, err error) {
	if n.Blocked() {
		n.stalls++
		n.invoke(tick, HookPosNodeStall, nil)

		return nil, nil
	}

	n.invoke(tick, HookPosBeforeActivation, nil)

	n.activations++
	arrived := n.gather(tick)
	emitting := false

	switch {
	case n.holdLeft > 0:
		n.holdLeft--
		emitting = true
	case arrived || !n.hasConnectedInput():
		n.gathers++
		if n.gathers >= n.rate.In {
			if err := n.transform(); err != nil {
				return nil, err
			}

			emitting = true
		}
	}

	if emitting {
		dropped, err = n.emit(tick)
		if err != nil {
			return dropped, err
		}
	}

	n.settle()
	n.invoke(tick, HookPosAfterActivation, dropped)

	return dropped, nil
}

func (n *Node) hasConnectedInput() bool {
	for _, in := range n.inputs {
		if in.IsConnected() {
			return true
		}
	}

	return false
}

func (n *Node) gather(tick uint64) bool {
	arrived := false

	for _, in := range n.inputs {
		if in.edge == nil {
			continue
		}

		for _, p := range in.edge.Drain(tick) {
			n.client.Read(p)
			arrived = true
		}
	}

	if arrived && n.state == Idle {
		n.state = Gathering
	}

	return arrived
}

func (n *Node) transform() error {
	n.state = Ready
	n.gathers = 0

	if err := n.client.Update(); err != nil {
		return err
	}

	for i, out := range n.outputs {
		p, err := n.client.Write(out.tag)
		if err != nil {
			return err
		}

		if p != nil && p.Tag() != out.tag {
			return fmt.Errorf("%w: port %s got a %s payload",
				ErrWrongTag, out.Name(), p.Tag())
		}

		n.held[i] = p
	}

	n.holdLeft = 0
	if n.holding() {
		n.state = Emitting
		n.holdLeft = n.rate.Out - 1
	}

	return nil
}

func (n *Node) holding() bool {
	for _, p := range n.held {
		if p != nil {
			return true
		}
	}

	return false
}

func (n *Node) emit(tick uint64) ([]*CapacityError, error) {
	var dropped []*CapacityError

	pushed := false

	for i, out := range n.outputs {
		p := n.held[i]
		if p == nil {
			continue
		}

		for _, e := range out.edges {
			if !pushed {
				pushed = true
				n.emissions++
			}

			err := e.Push(tick, p)

			var capErr *CapacityError
			if errors.As(err, &capErr) {
				dropped = append(dropped, capErr)
				continue
			}

			if err != nil {
				return dropped, err
			}
		}
	}

	return dropped, nil
}

func (n *Node) settle() {
	switch {
	case n.holdLeft > 0:
		n.state = Emitting
	case n.gathers > 0:
		n.state = Gathering
	default:
		n.state = Idle
	}
}

func (n *Node) invoke(tick uint64, pos *hooking.HookPos, detail any) {
	if n.NumHooks() == 0 {
		return
	}

	n.InvokeHook(hooking.HookCtx{
		Domain: n,
		Tick:   tick,
		Pos:    pos,
		Item:   n,
		Detail: detail,
	})
}
