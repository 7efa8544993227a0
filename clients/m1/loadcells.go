package m1

import (
	"fmt"

	"github.com/dosflow/dosflow/sim/payload"
)

// LoadCellPorts are the tags of the load cells.
type LoadCellPorts struct {
	// DeltaF is the hardpoint force change, one value per hardpoint.
	DeltaF *payload.Tag

	// Displacements holds the two end displacements of every hardpoint.
	Displacements *payload.Tag

	// Segments are the load cell outputs, one per segment.
	Segments [NumSegments]*payload.Tag
}

// LoadCells measure the hardpoint loads. Run at (R,1) they average the R
// samples of a window and emit one load per hardpoint and segment.
type LoadCells struct {
	ports     LoadCellPorts
	stiffness float64

	sumF, sumD []float64
	nF, nD     int
	loads      []float64
}

// NewLoadCells creates the load cells with the given hardpoint stiffness.
func NewLoadCells(ports LoadCellPorts, stiffness float64) (*LoadCells, error) {
	if ports.DeltaF.Len() != NumHardpoints ||
		ports.Displacements.Len() != 2*NumHardpoints {
		return nil, fmt.Errorf("%w: %s needs %d values and %s needs %d",
			payload.ErrLengthMismatch,
			ports.DeltaF, NumHardpoints,
			ports.Displacements, 2*NumHardpoints)
	}

	for _, t := range ports.Segments {
		if t.Len() != HardpointsPerSegment {
			return nil, fmt.Errorf("%w: %s should hold %d values",
				payload.ErrLengthMismatch, t, HardpointsPerSegment)
		}
	}

	l := &LoadCells{ports: ports, stiffness: stiffness}
	l.restart()

	return l, nil
}

func (l *LoadCells) restart() {
	l.sumF = make([]float64, NumHardpoints)
	l.sumD = make([]float64, 2*NumHardpoints)
	l.nF, l.nD = 0, 0
}

func (l *LoadCells) Inputs() []*payload.Tag {
	return []*payload.Tag{l.ports.DeltaF, l.ports.Displacements}
}

func (l *LoadCells) Outputs() []*payload.Tag {
	return l.ports.Segments[:]
}

func (l *LoadCells) Read(p *payload.Payload) {
	switch p.Tag() {
	case l.ports.DeltaF:
		accumulate(l.sumF, p)
		l.nF++
	case l.ports.Displacements:
		accumulate(l.sumD, p)
		l.nD++
	}
}

func accumulate(sum []float64, p *payload.Payload) {
	for i := range sum {
		sum[i] += p.At(i)
	}
}

func (l *LoadCells) Update() error {
	l.loads = make([]float64, NumHardpoints)

	for i := range l.loads {
		var f, top, bottom float64
		if l.nF > 0 {
			f = l.sumF[i] / float64(l.nF)
		}

		if l.nD > 0 {
			top = l.sumD[2*i] / float64(l.nD)
			bottom = l.sumD[2*i+1] / float64(l.nD)
		}

		l.loads[i] = f - l.stiffness*(top-bottom)
	}

	l.restart()

	return nil
}

func (l *LoadCells) Write(tag *payload.Tag) (*payload.Payload, error) {
	for sid, t := range l.ports.Segments {
		if t == tag {
			lo := sid * HardpointsPerSegment
			return payload.New(tag, l.loads[lo:lo+HardpointsPerSegment])
		}
	}

	return nil, fmt.Errorf("%w: %s is not a load cell output",
		payload.ErrInvalidTag, tag)
}
