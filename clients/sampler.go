package clients

import (
	"github.com/dosflow/dosflow/sim/payload"
)

// Sum adds up every payload gathered in a window. Run at (R,1) it turns R
// samples into their sum.
type Sum struct {
	in, out *payload.Tag
	acc     []float64
	result  []float64
}

// NewSum creates a summing node from in to out.
func NewSum(in, out *payload.Tag) (*Sum, error) {
	if in.Len() != out.Len() {
		return nil, errTagLen(out, in.Len())
	}

	return &Sum{in: in, out: out}, nil
}

func (s *Sum) Inputs() []*payload.Tag  { return []*payload.Tag{s.in} }
func (s *Sum) Outputs() []*payload.Tag { return []*payload.Tag{s.out} }

func (s *Sum) Read(p *payload.Payload) {
	if s.acc == nil {
		s.acc = make([]float64, p.Len())
	}

	for i := 0; i < p.Len(); i++ {
		s.acc[i] += p.At(i)
	}
}

func (s *Sum) Update() error {
	s.result = s.acc
	s.acc = nil

	return nil
}

func (s *Sum) Write(tag *payload.Tag) (*payload.Payload, error) {
	if s.result == nil {
		return nil, nil
	}

	return payload.New(tag, s.result)
}

// Sampler passes on the latest payload it read. Run at (R,1) it decimates;
// at (1,R) it holds.
type Sampler struct {
	in, out *payload.Tag
	last    *payload.Payload
}

// NewSampler creates a sampler from in to out.
func NewSampler(in, out *payload.Tag) (*Sampler, error) {
	if in.Len() != out.Len() {
		return nil, errTagLen(out, in.Len())
	}

	return &Sampler{in: in, out: out}, nil
}

func (s *Sampler) Inputs() []*payload.Tag  { return []*payload.Tag{s.in} }
func (s *Sampler) Outputs() []*payload.Tag { return []*payload.Tag{s.out} }
func (s *Sampler) Read(p *payload.Payload) { s.last = p }
func (s *Sampler) Update() error           { return nil }

func (s *Sampler) Write(tag *payload.Tag) (*payload.Payload, error) {
	if s.last == nil {
		return nil, nil
	}

	return payload.New(tag, s.last.Values())
}
