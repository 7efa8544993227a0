// Package modeling defines the building blocks of a dataflow graph: the
// client contract that components implement, the nodes that drive clients at
// a rate ratio, and the edges that carry payloads between nodes.
package modeling

import "github.com/dosflow/dosflow/sim/payload"

// A Client is the user code behind a node. The engine calls Read for every
// payload that arrives, Update once per gathering window, and Write once per
// output port when the node emits.
type Client interface {
	// Inputs lists the tags the client consumes, in port order.
	Inputs() []*payload.Tag

	// Outputs lists the tags the client produces, in port order.
	Outputs() []*payload.Tag

	// Read delivers an incoming payload. A later payload of the same tag in
	// the same window replaces an earlier one unless the client aggregates.
	Read(p *payload.Payload)

	// Update runs the transform. An error aborts the run.
	Update() error

	// Write returns the payload for the given output tag. A nil payload
	// means nothing is emitted on that port this time.
	Write(tag *payload.Tag) (*payload.Payload, error)
}

// An InputDefaulter supplies the payload of an input that is not connected.
// The default is delivered once, before the first tick.
type InputDefaulter interface {
	DefaultInput(tag *payload.Tag) *payload.Payload
}

// A Finisher is told when the run is over and whether it ran to the end.
type Finisher interface {
	Finish(complete bool)
}
