package clients

import (
	"fmt"

	"github.com/dosflow/dosflow/sim/payload"
)

// Adder merges two vectors of equal length by summing them. It emits nothing
// until both have arrived; after that the latest of each is used.
type Adder struct {
	a, b, out *payload.Tag
	lastA     *payload.Payload
	lastB     *payload.Payload
	sum       []float64
}

// NewAdder creates an adder of a and b into out. out may be the tag of a.
func NewAdder(a, b, out *payload.Tag) (*Adder, error) {
	if a.Len() != b.Len() || a.Len() != out.Len() {
		return nil, fmt.Errorf("%w: cannot add %s and %s into %s",
			payload.ErrLengthMismatch, a, b, out)
	}

	return &Adder{a: a, b: b, out: out}, nil
}

func (c *Adder) Inputs() []*payload.Tag  { return []*payload.Tag{c.a, c.b} }
func (c *Adder) Outputs() []*payload.Tag { return []*payload.Tag{c.out} }

func (c *Adder) Read(p *payload.Payload) {
	switch p.Tag() {
	case c.a:
		c.lastA = p
	case c.b:
		c.lastB = p
	}
}

func (c *Adder) Update() error {
	if c.lastA == nil || c.lastB == nil {
		c.sum = nil
		return nil
	}

	c.sum = c.lastA.Values()
	for i := range c.sum {
		c.sum[i] += c.lastB.At(i)
	}

	return nil
}

func (c *Adder) Write(tag *payload.Tag) (*payload.Payload, error) {
	if c.sum == nil {
		return nil, nil
	}

	return payload.New(tag, c.sum)
}
