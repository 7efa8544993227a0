// Package windloads provides the disturbance source of a telescope model.
// A profile produces one load vector per instant and the Loads node splits
// it into the M1, M2 and mount load outputs.
package windloads

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
)

// ErrEmptySeries is returned when a recorded series holds no sample.
var ErrEmptySeries = errors.New("series has no sample")

// A Profile gives the loads at time t in seconds. At returns false once the
// profile has nothing more to give.
type Profile interface {
	Width() int
	At(t float64, out []float64) bool
}

type gust struct {
	amplitude float64
	frequency float64
	phase     float64
}

// Gusts is a synthetic profile. Every channel is a mean load plus a few
// sinusoidal gusts whose parameters are drawn from a seeded generator, so
// two profiles with the same seed are identical.
type Gusts struct {
	means  []float64
	gusts  [][]gust
	stddev float64
}

// NewGusts creates a width channel gust profile.
func NewGusts(width int, seed uint64, stddev float64) *Gusts {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	g := &Gusts{
		means:  make([]float64, width),
		gusts:  make([][]gust, width),
		stddev: stddev,
	}

	for i := range width {
		g.means[i] = stddev * rng.NormFloat64()
		g.gusts[i] = make([]gust, 3)

		for k := range g.gusts[i] {
			g.gusts[i][k] = gust{
				amplitude: stddev * math.Abs(rng.NormFloat64()) / float64(k+1),
				frequency: 0.05 + 2*rng.Float64()*float64(k+1),
				phase:     2 * math.Pi * rng.Float64(),
			}
		}
	}

	return g
}

// Width implements Profile.
func (g *Gusts) Width() int { return len(g.means) }

// At implements Profile. Gusts never run out.
func (g *Gusts) At(t float64, out []float64) bool {
	for i, m := range g.means {
		v := m
		for _, k := range g.gusts[i] {
			v += k.amplitude * math.Sin(2*math.Pi*k.frequency*t+k.phase)
		}

		out[i] = v
	}

	return true
}

// Series is a recorded profile sampled at RateHz, interpolated with a first
// order hold.
type Series struct {
	RateHz  float64
	Samples [][]float64
}

// NewSeries checks that every sample has the same width.
func NewSeries(rateHz float64, samples [][]float64) (*Series, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySeries
	}

	if rateHz <= 0 {
		return nil, fmt.Errorf("series rate must be positive, got %g", rateHz)
	}

	width := len(samples[0])
	for i, s := range samples {
		if len(s) != width {
			return nil, fmt.Errorf(
				"sample %d has %d values, the first has %d", i, len(s), width)
		}
	}

	return &Series{RateHz: rateHz, Samples: samples}, nil
}

// ReadSeries parses a series from CSV, one sample per record.
func ReadSeries(r io.Reader, rateHz float64) (*Series, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read series: %w", err)
	}

	samples := make([][]float64, len(records))
	for i, rec := range records {
		samples[i] = make([]float64, len(rec))

		for j, field := range rec {
			samples[i][j], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("record %d field %d: %w", i, j, err)
			}
		}
	}

	return NewSeries(rateHz, samples)
}

// Width implements Profile.
func (s *Series) Width() int { return len(s.Samples[0]) }

// Duration is the time covered by the series in seconds.
func (s *Series) Duration() float64 {
	return float64(len(s.Samples)-1) / s.RateHz
}

// At implements Profile.
func (s *Series) At(t float64, out []float64) bool {
	x := t * s.RateHz
	i := int(math.Floor(x))
	last := len(s.Samples) - 1

	switch {
	case i < 0 || i > last:
		return false
	case i == last:
		if x > float64(last) {
			return false
		}

		copy(out, s.Samples[last])

		return true
	}

	frac := x - float64(i)
	lo, hi := s.Samples[i], s.Samples[i+1]

	for j := range out {
		out[j] = lo[j] + frac*(hi[j]-lo[j])
	}

	return true
}
