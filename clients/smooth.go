package clients

import (
	"github.com/dosflow/dosflow/sim/payload"
)

// Smooth scales a vector by a scalar weight. It reads the weight and the
// vector and writes the weighted vector under the tag of the vector.
//
// A vector only counts in the window it arrives in. Once vectors stop
// arriving, Smooth writes zeros, so a source that ran out stops loading the
// nodes downstream instead of freezing its last value.
type Smooth struct {
	weightTag *payload.Tag
	tag       *payload.Tag
	weight    float64
	data      *payload.Payload
	seen      bool
	out       []float64
}

// NewSmooth creates a smoother of tag by the one-value weightTag.
func NewSmooth(weightTag, tag *payload.Tag) (*Smooth, error) {
	if weightTag.Len() != 1 {
		return nil, errTagLen(weightTag, 1)
	}

	return &Smooth{weightTag: weightTag, tag: tag}, nil
}

func (s *Smooth) Inputs() []*payload.Tag  { return []*payload.Tag{s.weightTag, s.tag} }
func (s *Smooth) Outputs() []*payload.Tag { return []*payload.Tag{s.tag} }

func (s *Smooth) Read(p *payload.Payload) {
	switch p.Tag() {
	case s.weightTag:
		s.weight = p.At(0)
	case s.tag:
		s.data = p
		s.seen = true
	}
}

func (s *Smooth) Update() error {
	switch {
	case s.data != nil:
		s.out = s.data.Values()
		for i := range s.out {
			s.out[i] *= s.weight
		}
	case s.seen:
		s.out = make([]float64, s.tag.Len())
	default:
		s.out = nil
	}

	s.data = nil

	return nil
}

func (s *Smooth) Write(tag *payload.Tag) (*payload.Payload, error) {
	if s.out == nil {
		return nil, nil
	}

	return payload.New(tag, s.out)
}
