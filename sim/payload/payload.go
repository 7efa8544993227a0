package payload

import (
	"fmt"
	"math"
)

// A Payload is an immutable vector of float64 values branded with a tag.
// Payloads are shared between every consumer of a fan-out; nobody may modify
// one after it is created.
type Payload struct {
	tag    *Tag
	values []float64
}

// New creates a payload. The values are copied.
func New(tag *Tag, values []float64) (*Payload, error) {
	if tag == nil {
		return nil, fmt.Errorf("%w: nil tag", ErrInvalidTag)
	}

	if len(values) != tag.length {
		return nil, fmt.Errorf("%w: tag %s expects %d values, got %d",
			ErrLengthMismatch, tag.name, tag.length, len(values))
	}

	p := &Payload{
		tag:    tag,
		values: make([]float64, len(values)),
	}
	copy(p.values, values)

	return p, nil
}

// MustNew is like New but panics on error.
func MustNew(tag *Tag, values []float64) *Payload {
	p, err := New(tag, values)
	if err != nil {
		panic(err)
	}

	return p
}

// Zero creates an all-zero payload of the given tag.
func Zero(tag *Tag) *Payload {
	return &Payload{
		tag:    tag,
		values: make([]float64, tag.length),
	}
}

// Tag returns the tag of the payload.
func (p *Payload) Tag() *Tag {
	return p.tag
}

// Len returns the number of values.
func (p *Payload) Len() int {
	return len(p.values)
}

// At returns the i-th value.
func (p *Payload) At(i int) float64 {
	return p.values[i]
}

// Values returns a copy of the values.
func (p *Payload) Values() []float64 {
	values := make([]float64, len(p.values))
	copy(values, p.values)

	return values
}

// Slice returns a copy of the values in [lo, hi).
func (p *Payload) Slice(lo, hi int) []float64 {
	values := make([]float64, hi-lo)
	copy(values, p.values[lo:hi])

	return values
}

// Equal reports whether two payloads have the same tag and bit-identical
// values.
func (p *Payload) Equal(other *Payload) bool {
	if p == nil || other == nil {
		return p == other
	}

	if p.tag != other.tag || len(p.values) != len(other.values) {
		return false
	}

	for i, v := range p.values {
		if math.Float64bits(v) != math.Float64bits(other.values[i]) {
			return false
		}
	}

	return true
}

func (p *Payload) String() string {
	return fmt.Sprintf("%s%v", p.tag.name, p.values)
}
