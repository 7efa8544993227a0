// Package m1 provides the M1 control loops: the hardpoint dynamics, the
// hardpoint load cells that run at the M1 rate, and the seven segment
// actuator controllers that hold their command between M1 updates.
package m1

import (
	"fmt"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// NumSegments is the number of M1 segments.
const NumSegments = 7

// HardpointsPerSegment is the number of hardpoints holding one segment.
const HardpointsPerSegment = 6

// NumHardpoints is the number of hardpoints of M1.
const NumHardpoints = NumSegments * HardpointsPerSegment

// Hardpoints turns the rigid body motion command of the segments into
// hardpoint force changes through a first order lag.
type Hardpoints struct {
	cmdTag, forceTag *payload.Tag
	stiffness        float64
	alpha            float64
	cmd              []float64
	force            []float64
}

// NewHardpoints creates the hardpoint dynamics. alpha in (0, 1] is the lag
// coefficient per step.
func NewHardpoints(cmd, force *payload.Tag, stiffness, alpha float64) (*Hardpoints, error) {
	if cmd.Len() != NumHardpoints || force.Len() != NumHardpoints {
		return nil, fmt.Errorf("%w: %s and %s should hold %d values",
			payload.ErrLengthMismatch, cmd, force, NumHardpoints)
	}

	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("hardpoint lag must be in (0, 1], got %g", alpha)
	}

	logging.Component("m1").Debug().
		Float64("stiffness", stiffness).
		Float64("alpha", alpha).
		Msg("hardpoints configured")

	return &Hardpoints{
		cmdTag:    cmd,
		forceTag:  force,
		stiffness: stiffness,
		alpha:     alpha,
		cmd:       make([]float64, NumHardpoints),
		force:     make([]float64, NumHardpoints),
	}, nil
}

func (h *Hardpoints) Inputs() []*payload.Tag  { return []*payload.Tag{h.cmdTag} }
func (h *Hardpoints) Outputs() []*payload.Tag { return []*payload.Tag{h.forceTag} }
func (h *Hardpoints) Read(p *payload.Payload) { h.cmd = p.Values() }

func (h *Hardpoints) Update() error {
	for i, c := range h.cmd {
		h.force[i] += h.alpha * (h.stiffness*c - h.force[i])
	}

	return nil
}

func (h *Hardpoints) Write(tag *payload.Tag) (*payload.Payload, error) {
	return payload.New(tag, h.force)
}
