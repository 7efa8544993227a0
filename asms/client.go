package asms

import (
	"fmt"

	"github.com/dosflow/dosflow/sim/payload"
)

// Ports names the tags the aggregate node reads and writes.
type Ports struct {
	// Command holds the command of every segment, segment 1 first.
	Command *payload.Tag
	// Feedback holds the rigid-body modal displacements of every segment.
	Feedback *payload.Tag
	// Forces receives the collected output.
	Forces *payload.Tag
	// CPModalForces receives the gained center-of-pressure modal forces
	// of every segment.
	CPModalForces *payload.Tag
}

// Client runs the aggregate as a dataflow node. On every update it
// dispatches each segment's share of the inputs, applies the gains and
// advances the controllers.
type Client struct {
	agg   *Aggregate
	ports Ports

	command  []float64
	feedback []float64
}

// NewClient wraps an aggregate. The tag lengths must match its schema.
func NewClient(agg *Aggregate, ports Ports) (*Client, error) {
	s := agg.Schema()
	cp, _ := s.Slice(CPModalForce)

	checks := []struct {
		tag  *payload.Tag
		want int
	}{
		{ports.Command, NumSegments * s.CommandLen},
		{ports.Feedback, NumSegments * s.FeedbackLen},
		{ports.Forces, s.CollectedLen()},
		{ports.CPModalForces, NumSegments * cp.Len},
	}

	for _, c := range checks {
		if c.tag == nil {
			return nil, fmt.Errorf("%w: missing port tag", payload.ErrInvalidTag)
		}

		if c.tag.Len() != c.want {
			return nil, fmt.Errorf("%w: %s should hold %d values",
				payload.ErrLengthMismatch, c.tag, c.want)
		}
	}

	return &Client{
		agg:      agg,
		ports:    ports,
		command:  make([]float64, ports.Command.Len()),
		feedback: make([]float64, ports.Feedback.Len()),
	}, nil
}

// Aggregate returns the wrapped aggregate.
func (c *Client) Aggregate() *Aggregate {
	return c.agg
}

func (c *Client) Inputs() []*payload.Tag {
	return []*payload.Tag{c.ports.Command, c.ports.Feedback}
}

func (c *Client) Outputs() []*payload.Tag {
	return []*payload.Tag{c.ports.Forces, c.ports.CPModalForces}
}

func (c *Client) Read(p *payload.Payload) {
	switch p.Tag() {
	case c.ports.Command:
		c.command = p.Values()
	case c.ports.Feedback:
		c.feedback = p.Values()
	}
}

func (c *Client) Update() error {
	s := c.agg.Schema()

	for sid := 1; sid <= NumSegments; sid++ {
		cmd := c.command[(sid-1)*s.CommandLen : sid*s.CommandLen]
		fb := c.feedback[(sid-1)*s.FeedbackLen : sid*s.FeedbackLen]

		if _, err := c.agg.Dispatch(sid, cmd, fb); err != nil {
			return err
		}
	}

	c.agg.Process()

	return c.agg.Advance()
}

func (c *Client) Write(tag *payload.Tag) (*payload.Payload, error) {
	switch tag {
	case c.ports.Forces:
		return payload.New(tag, c.agg.CollectOutputs())
	case c.ports.CPModalForces:
		return payload.New(tag, c.agg.CollectSlice(CPModalForce))
	default:
		return nil, nil
	}
}
