package clients

import (
	"math"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// Sigmoid is a source that fades a weight in from 0 to 1. At step i it emits
// r^2 with r = 1/(1+exp(-5u)) and u = (i-delay)/ramp.
type Sigmoid struct {
	tag   *payload.Tag
	delay float64
	ramp  float64
	step  int
	value float64
}

// NewSigmoid creates a fade-in over ramp steps, centered delay steps after
// the start. The tag must hold one value.
func NewSigmoid(tag *payload.Tag, delay, ramp int) (*Sigmoid, error) {
	if tag.Len() != 1 {
		return nil, errTagLen(tag, 1)
	}

	if ramp <= 0 {
		ramp = 1
	}

	logging.Component("sigmoid").Debug().
		Str("tag", tag.Name()).
		Int("delay", delay).
		Int("ramp", ramp).
		Msg("fade-in configured")

	return &Sigmoid{tag: tag, delay: float64(delay), ramp: float64(ramp)}, nil
}

// Weight returns the weight at step i.
func (s *Sigmoid) Weight(i int) float64 {
	u := (float64(i) - s.delay) / s.ramp
	r := 1 / (1 + math.Exp(-5*u))

	return r * r
}

func (s *Sigmoid) Inputs() []*payload.Tag  { return nil }
func (s *Sigmoid) Outputs() []*payload.Tag { return []*payload.Tag{s.tag} }
func (s *Sigmoid) Read(*payload.Payload)   {}

func (s *Sigmoid) Update() error {
	s.value = s.Weight(s.step)
	s.step++

	return nil
}

func (s *Sigmoid) Write(tag *payload.Tag) (*payload.Payload, error) {
	return payload.New(tag, []float64{s.value})
}
