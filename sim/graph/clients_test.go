package graph

import (
	"errors"

	"github.com/dosflow/dosflow/sim/payload"
)

// source emits script(tick) on every tick; a nil result emits nothing.
type source struct {
	tag    *payload.Tag
	script func(tick int) []float64
	tick   int
	next   []float64
}

func (c *source) Inputs() []*payload.Tag  { return nil }
func (c *source) Outputs() []*payload.Tag { return []*payload.Tag{c.tag} }
func (c *source) Read(*payload.Payload)   {}

func (c *source) Update() error {
	c.next = c.script(c.tick)
	c.tick++

	return nil
}

func (c *source) Write(tag *payload.Tag) (*payload.Payload, error) {
	if c.next == nil {
		return nil, nil
	}

	return payload.New(tag, c.next)
}

func constant(tag *payload.Tag, values ...float64) *source {
	return &source{
		tag:    tag,
		script: func(int) []float64 { return values },
	}
}

// summer adds up every payload gathered in a window.
type summer struct {
	in, out *payload.Tag
	acc     []float64
}

func (c *summer) Inputs() []*payload.Tag  { return []*payload.Tag{c.in} }
func (c *summer) Outputs() []*payload.Tag { return []*payload.Tag{c.out} }

func (c *summer) Read(p *payload.Payload) {
	if c.acc == nil {
		c.acc = make([]float64, p.Len())
	}

	for i, v := range p.Values() {
		c.acc[i] += v
	}
}

func (c *summer) Update() error { return nil }

func (c *summer) Write(tag *payload.Tag) (*payload.Payload, error) {
	p, err := payload.New(tag, c.acc)
	c.acc = nil

	return p, err
}

// adder emits the sum of its two inputs once both have arrived.
type adder struct {
	a, b, out *payload.Tag
	last      map[*payload.Tag]*payload.Payload
	sum       []float64
}

func newAdder(a, b, out *payload.Tag) *adder {
	return &adder{a: a, b: b, out: out, last: map[*payload.Tag]*payload.Payload{}}
}

func (c *adder) Inputs() []*payload.Tag  { return []*payload.Tag{c.a, c.b} }
func (c *adder) Outputs() []*payload.Tag { return []*payload.Tag{c.out} }
func (c *adder) Read(p *payload.Payload) { c.last[p.Tag()] = p }

func (c *adder) Update() error {
	pa, pb := c.last[c.a], c.last[c.b]
	if pa == nil || pb == nil {
		c.sum = nil
		return nil
	}

	c.sum = make([]float64, pa.Len())
	for i := range c.sum {
		c.sum[i] = pa.At(i) + pb.At(i)
	}

	return nil
}

func (c *adder) Write(tag *payload.Tag) (*payload.Payload, error) {
	if c.sum == nil {
		return nil, nil
	}

	return payload.New(tag, c.sum)
}

// gain maps its input to k*input + offset. It remembers everything it read.
type gain struct {
	in, out *payload.Tag
	k       float64
	offset  float64
	seen    [][]float64
	failAt  int
	updates int
}

var errBoom = errors.New("boom")

func (c *gain) Inputs() []*payload.Tag  { return []*payload.Tag{c.in} }
func (c *gain) Outputs() []*payload.Tag { return []*payload.Tag{c.out} }
func (c *gain) Read(p *payload.Payload) { c.seen = append(c.seen, p.Values()) }

func (c *gain) Update() error {
	c.updates++
	if c.failAt > 0 && c.updates == c.failAt {
		return errBoom
	}

	return nil
}

func (c *gain) Write(tag *payload.Tag) (*payload.Payload, error) {
	last := c.seen[len(c.seen)-1]
	out := make([]float64, len(last))
	for i, v := range last {
		out[i] = c.k*v + c.offset
	}

	return payload.New(tag, out)
}

// recorder keeps every payload it reads, per tag.
type recorder struct {
	tags     []*payload.Tag
	got      map[*payload.Tag][][]float64
	finished []bool
	defaults map[*payload.Tag]*payload.Payload
}

func newRecorder(tags ...*payload.Tag) *recorder {
	return &recorder{tags: tags, got: map[*payload.Tag][][]float64{}}
}

func (c *recorder) Inputs() []*payload.Tag  { return c.tags }
func (c *recorder) Outputs() []*payload.Tag { return nil }
func (c *recorder) Update() error           { return nil }

func (c *recorder) Read(p *payload.Payload) {
	c.got[p.Tag()] = append(c.got[p.Tag()], p.Values())
}

func (c *recorder) Write(*payload.Tag) (*payload.Payload, error) {
	return nil, nil
}

func (c *recorder) Finish(complete bool) {
	c.finished = append(c.finished, complete)
}

// defaultingRecorder fills unconnected inputs with its defaults.
type defaultingRecorder struct {
	*recorder
}

func (c defaultingRecorder) DefaultInput(tag *payload.Tag) *payload.Payload {
	return c.defaults[tag]
}
