// Package m2 provides the M2 positioner controller. Each positioner
// actuator sees the relative displacement of its two end nodes and is
// driven back to its commanded length.
package m2

import (
	"fmt"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// Ports are the tags of the positioner.
type Ports struct {
	Command *payload.Tag
	Nodes   *payload.Tag
	Forces  *payload.Tag
}

// Positioner is a proportional controller of the positioner lengths.
type Positioner struct {
	ports   Ports
	stiff   float64
	command []float64
	nodes   []float64
	forces  []float64
}

// NewPositioner creates a positioner of n actuators with the given loop
// stiffness. The nodes tag holds two values per actuator.
func NewPositioner(ports Ports, stiffness float64) (*Positioner, error) {
	n := ports.Command.Len()
	if ports.Forces.Len() != n || ports.Nodes.Len() != 2*n {
		return nil, fmt.Errorf(
			"%w: %s and %s need %d values, %s needs %d",
			payload.ErrLengthMismatch,
			ports.Command, ports.Forces, n, ports.Nodes, 2*n)
	}

	logging.Component("m2").Debug().
		Int("actuators", n).
		Float64("stiffness", stiffness).
		Msg("positioner configured")

	return &Positioner{
		ports:   ports,
		stiff:   stiffness,
		command: make([]float64, n),
		nodes:   make([]float64, 2*n),
	}, nil
}

func (c *Positioner) Inputs() []*payload.Tag {
	return []*payload.Tag{c.ports.Command, c.ports.Nodes}
}

func (c *Positioner) Outputs() []*payload.Tag {
	return []*payload.Tag{c.ports.Forces}
}

func (c *Positioner) Read(p *payload.Payload) {
	switch p.Tag() {
	case c.ports.Command:
		c.command = p.Values()
	case c.ports.Nodes:
		c.nodes = p.Values()
	}
}

func (c *Positioner) Update() error {
	c.forces = make([]float64, len(c.command))

	for i, cmd := range c.command {
		stroke := c.nodes[2*i] - c.nodes[2*i+1]
		c.forces[i] = c.stiff * (cmd - stroke)
	}

	return nil
}

func (c *Positioner) Write(tag *payload.Tag) (*payload.Payload, error) {
	return payload.New(tag, c.forces)
}
