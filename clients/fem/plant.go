package fem

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// Plant is the node around a Modal model. Its inputs and outputs are fixed
// at construction; the input vector is the concatenation of the inputs in
// the given order, and so is the output vector.
type Plant struct {
	modal   *Modal
	ins     []*payload.Tag
	outs    []*payload.Tag
	inAt    map[*payload.Tag]int
	outAt   map[*payload.Tag]int
	u       []float64
	y       []float64
	updates int
	logger  *zerolog.Logger
}

// NewPlant builds the modal model for the given inputs and outputs.
func NewPlant(cfg Config, ins, outs []*payload.Tag) (*Plant, error) {
	p := &Plant{
		ins:    ins,
		outs:   outs,
		inAt:   make(map[*payload.Tag]int, len(ins)),
		outAt:  make(map[*payload.Tag]int, len(outs)),
		logger: logging.Component("fem"),
	}

	nIn, err := offsets(ins, p.inAt)
	if err != nil {
		return nil, err
	}

	nOut, err := offsets(outs, p.outAt)
	if err != nil {
		return nil, err
	}

	p.modal, err = NewModal(cfg, nIn, nOut)
	if err != nil {
		return nil, err
	}

	p.u = make([]float64, nIn)
	p.y = make([]float64, nOut)

	p.logger.Debug().
		Int("modes", cfg.Modes).
		Float64("damping", cfg.Damping).
		Float64("sampling_hz", cfg.SamplingHz).
		Int("inputs", nIn).
		Int("outputs", nOut).
		Msg("plant discretised")

	return p, nil
}

func offsets(tags []*payload.Tag, at map[*payload.Tag]int) (int, error) {
	n := 0
	for _, t := range tags {
		if _, dup := at[t]; dup {
			return 0, fmt.Errorf("%w: %s listed twice", payload.ErrInvalidTag, t)
		}

		at[t] = n
		n += t.Len()
	}

	return n, nil
}

// Modal returns the underlying model.
func (p *Plant) Modal() *Modal { return p.modal }

func (p *Plant) Inputs() []*payload.Tag  { return p.ins }
func (p *Plant) Outputs() []*payload.Tag { return p.outs }

// DefaultInput lets a partial model leave plant inputs unconnected. They
// stay at zero.
func (p *Plant) DefaultInput(tag *payload.Tag) *payload.Payload {
	return payload.Zero(tag)
}

// Read stores the latest value of an input. Inputs that do not arrive on a
// step keep their last value.
func (p *Plant) Read(in *payload.Payload) {
	lo, ok := p.inAt[in.Tag()]
	if !ok {
		return
	}

	copy(p.u[lo:lo+in.Len()], in.Values())
}

func (p *Plant) Update() error {
	y, err := p.modal.Step(p.u)
	if err != nil {
		p.logger.Error().Err(err).Int("update", p.updates).Msg("plant diverged")
		return err
	}

	p.y = y
	p.updates++

	return nil
}

func (p *Plant) Write(tag *payload.Tag) (*payload.Payload, error) {
	lo, ok := p.outAt[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a plant output",
			payload.ErrInvalidTag, tag)
	}

	return payload.New(tag, p.y[lo:lo+tag.Len()])
}
