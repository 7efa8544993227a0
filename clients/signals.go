package clients

import (
	"math"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// A Signal is the value of one channel at a step.
type Signal interface {
	At(step int) float64
}

// Constant is a signal that never changes.
type Constant float64

// At implements Signal.
func (c Constant) At(int) float64 { return float64(c) }

// Step is zero before Start and Value from Start on.
type Step struct {
	Start int
	Value float64
}

// At implements Signal.
func (s Step) At(step int) float64 {
	if step < s.Start {
		return 0
	}

	return s.Value
}

// Sinusoid is a sine wave sampled at SamplingHz.
type Sinusoid struct {
	Amplitude   float64
	FrequencyHz float64
	SamplingHz  float64
	Phase       float64
}

// At implements Signal.
func (s Sinusoid) At(step int) float64 {
	t := float64(step) / s.SamplingHz
	return s.Amplitude * math.Sin(2*math.Pi*s.FrequencyHz*t+s.Phase)
}

// Signals is a source of set points. Every channel is zero unless given a
// signal. After the last step the source stops emitting.
type Signals struct {
	tag      *payload.Tag
	channels []Signal
	steps    int
	step     int
	values   []float64
}

// NewSignals creates an all-zero set point source for steps steps. A
// non-positive steps never stops.
func NewSignals(tag *payload.Tag, steps int) *Signals {
	logging.Component("signals").Debug().
		Str("tag", tag.Name()).
		Int("steps", steps).
		Msg("set points configured")

	return &Signals{
		tag:      tag,
		channels: make([]Signal, tag.Len()),
		steps:    steps,
	}
}

// Channel sets the signal of one channel.
func (s *Signals) Channel(i int, sig Signal) *Signals {
	s.channels[i] = sig
	return s
}

// All sets the same signal on every channel.
func (s *Signals) All(sig Signal) *Signals {
	for i := range s.channels {
		s.channels[i] = sig
	}

	return s
}

func (s *Signals) Inputs() []*payload.Tag  { return nil }
func (s *Signals) Outputs() []*payload.Tag { return []*payload.Tag{s.tag} }
func (s *Signals) Read(*payload.Payload)   {}

func (s *Signals) Update() error {
	if s.steps > 0 && s.step >= s.steps {
		s.values = nil
		return nil
	}

	s.values = make([]float64, len(s.channels))
	for i, sig := range s.channels {
		if sig != nil {
			s.values[i] = sig.At(s.step)
		}
	}

	s.step++

	return nil
}

func (s *Signals) Write(tag *payload.Tag) (*payload.Payload, error) {
	if s.values == nil {
		return nil, nil
	}

	return payload.New(tag, s.values)
}
