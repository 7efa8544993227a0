// Package mount provides the mount axes controller: a PI loop per axis from
// the encoder angles and the set point to the drive torques.
package mount

import (
	"fmt"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// NumAxes is the number of mount axes: azimuth, elevation and rotator.
const NumAxes = 3

// Ports are the tags of the controller.
type Ports struct {
	SetPoint *payload.Tag
	Encoders *payload.Tag
	Torques  *payload.Tag
}

// Gains of the PI loop, shared by the three axes.
type Gains struct {
	Kp float64
	Ki float64
	Dt float64
}

// DefaultGains returns gains for an 8 kHz loop.
func DefaultGains() Gains {
	return Gains{Kp: 2e3, Ki: 2e2, Dt: 1.0 / 8000}
}

// Controller drives the mount torques.
type Controller struct {
	ports    Ports
	gains    Gains
	setPoint [NumAxes]float64
	encoders [NumAxes]float64
	integral [NumAxes]float64
	torques  []float64
}

// New creates a mount controller.
func New(ports Ports, gains Gains) (*Controller, error) {
	for _, t := range []*payload.Tag{ports.SetPoint, ports.Encoders, ports.Torques} {
		if t.Len() != NumAxes {
			return nil, fmt.Errorf("%w: %s should hold %d values",
				payload.ErrLengthMismatch, t, NumAxes)
		}
	}

	logging.Component("mount").Debug().
		Float64("kp", gains.Kp).
		Float64("ki", gains.Ki).
		Msg("mount controller configured")

	return &Controller{ports: ports, gains: gains}, nil
}

// Integral returns the integrator state of the axes.
func (c *Controller) Integral() [NumAxes]float64 { return c.integral }

func (c *Controller) Inputs() []*payload.Tag {
	return []*payload.Tag{c.ports.SetPoint, c.ports.Encoders}
}

func (c *Controller) Outputs() []*payload.Tag {
	return []*payload.Tag{c.ports.Torques}
}

func (c *Controller) Read(p *payload.Payload) {
	switch p.Tag() {
	case c.ports.SetPoint:
		copy(c.setPoint[:], p.Values())
	case c.ports.Encoders:
		copy(c.encoders[:], p.Values())
	}
}

func (c *Controller) Update() error {
	c.torques = make([]float64, NumAxes)

	for i := range NumAxes {
		e := c.setPoint[i] - c.encoders[i]
		c.integral[i] += e * c.gains.Dt
		c.torques[i] = c.gains.Kp*e + c.gains.Ki*c.integral[i]
	}

	return nil
}

func (c *Controller) Write(tag *payload.Tag) (*payload.Payload, error) {
	return payload.New(tag, c.torques)
}
