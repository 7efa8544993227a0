package m1

import (
	"fmt"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// ErrInvalidSegment is returned for a segment id outside 1..7.
var ErrInvalidSegment = fmt.Errorf("segment id must be in 1..%d", NumSegments)

// Actuators is the force loop of one segment. It integrates the load cell
// readings of the segment into actuator forces that unload the hardpoints.
// Run at (1,R) the forces are held until the next load cell update.
type Actuators struct {
	id          int
	loads, cmds *payload.Tag
	ki          float64
	last        []float64
	forces      []float64
}

// NewActuators creates the controller of segment id.
func NewActuators(id int, loads, forces *payload.Tag, ki float64) (*Actuators, error) {
	if id < 1 || id > NumSegments {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSegment, id)
	}

	if loads.Len() != HardpointsPerSegment || forces.Len() != HardpointsPerSegment {
		return nil, fmt.Errorf("%w: %s and %s should hold %d values",
			payload.ErrLengthMismatch, loads, forces, HardpointsPerSegment)
	}

	logging.Component("m1").Debug().
		Int("segment", id).
		Float64("ki", ki).
		Msg("segment actuators configured")

	return &Actuators{
		id:     id,
		loads:  loads,
		cmds:   forces,
		ki:     ki,
		last:   make([]float64, HardpointsPerSegment),
		forces: make([]float64, HardpointsPerSegment),
	}, nil
}

// ID returns the segment id.
func (a *Actuators) ID() int { return a.id }

func (a *Actuators) Inputs() []*payload.Tag  { return []*payload.Tag{a.loads} }
func (a *Actuators) Outputs() []*payload.Tag { return []*payload.Tag{a.cmds} }
func (a *Actuators) Read(p *payload.Payload) { a.last = p.Values() }

func (a *Actuators) Update() error {
	for i, l := range a.last {
		a.forces[i] -= a.ki * l
	}

	return nil
}

func (a *Actuators) Write(tag *payload.Tag) (*payload.Payload, error) {
	return payload.New(tag, a.forces)
}
