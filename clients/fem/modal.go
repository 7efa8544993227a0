// Package fem provides the structural plant of a telescope model: a bank of
// second order modes excited by the concatenated inputs and observed by the
// concatenated outputs, integrated exactly at the sampling frequency.
package fem

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ErrDivergence is returned when the modal state grows out of bounds.
var ErrDivergence = errors.New("modal state diverged")

// ErrInvalidConfig is returned for a plant that cannot be discretised.
var ErrInvalidConfig = errors.New("invalid plant configuration")

// Config describes the modal plant.
type Config struct {
	Modes      int
	Damping    float64
	SamplingHz float64
	MinHz      float64
	MaxHz      float64
	Coupling   float64
	Seed       uint64
	Limit      float64
}

// DefaultConfig is a light 20 mode plant at 8 kHz with 0.5% damping.
func DefaultConfig() Config {
	return Config{
		Modes:      20,
		Damping:    0.005,
		SamplingHz: 8000,
		MinHz:      2,
		MaxHz:      200,
		Coupling:   1e-3,
		Seed:       1,
		Limit:      1e6,
	}
}

func (c Config) validate() error {
	switch {
	case c.Modes <= 0:
		return fmt.Errorf("%w: %d modes", ErrInvalidConfig, c.Modes)
	case c.Damping <= 0 || c.Damping >= 1:
		return fmt.Errorf("%w: damping %g", ErrInvalidConfig, c.Damping)
	case c.SamplingHz <= 0:
		return fmt.Errorf("%w: sampling %g Hz", ErrInvalidConfig, c.SamplingHz)
	case c.MinHz <= 0 || c.MaxHz < c.MinHz:
		return fmt.Errorf("%w: band [%g, %g] Hz",
			ErrInvalidConfig, c.MinHz, c.MaxHz)
	case c.Limit <= 0:
		return fmt.Errorf("%w: limit %g", ErrInvalidConfig, c.Limit)
	}

	return nil
}

// Frequencies returns the natural frequencies in Hz, log-spaced over the
// band.
func (c Config) Frequencies() []float64 {
	f := make([]float64, c.Modes)
	if c.Modes == 1 {
		f[0] = c.MinHz
		return f
	}

	ratio := math.Log(c.MaxHz / c.MinHz)
	for k := range f {
		f[k] = c.MinHz * math.Exp(ratio*float64(k)/float64(c.Modes-1))
	}

	return f
}

// Modal is the discrete modal state-space model
//
//	x[k+1] = Ad x[k] + Bd u[k]
//	y[k]   = C x[k]
//
// with a 2x2 block per mode holding its displacement and velocity.
type Modal struct {
	cfg   Config
	ad    *mat.Dense
	bd    *mat.Dense
	c     *mat.Dense
	x     *mat.VecDense
	next  *mat.VecDense
	force *mat.VecDense
	y     *mat.VecDense
	step  int
}

// NewModal discretises a plant with nIn inputs and nOut outputs.
func NewModal(cfg Config, nIn, nOut int) (*Modal, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if nIn <= 0 || nOut <= 0 {
		return nil, fmt.Errorf("%w: %d inputs and %d outputs",
			ErrInvalidConfig, nIn, nOut)
	}

	n := cfg.Modes
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	scale := cfg.Coupling / math.Sqrt(float64(n))

	// Modal participation of every input and every output.
	phiIn := mat.NewDense(n, nIn, nil)
	phiOut := mat.NewDense(nOut, n, nil)

	for k := range n {
		for j := range nIn {
			phiIn.Set(k, j, scale*rng.NormFloat64())
		}
	}

	for i := range nOut {
		for k := range n {
			phiOut.Set(i, k, scale*rng.NormFloat64())
		}
	}

	m := &Modal{
		cfg:   cfg,
		ad:    mat.NewDense(2*n, 2*n, nil),
		bd:    mat.NewDense(2*n, nIn, nil),
		c:     mat.NewDense(nOut, 2*n, nil),
		x:     mat.NewVecDense(2*n, nil),
		next:  mat.NewVecDense(2*n, nil),
		force: mat.NewVecDense(2*n, nil),
		y:     mat.NewVecDense(nOut, nil),
	}

	dt := 1 / cfg.SamplingHz
	for k, hz := range cfg.Frequencies() {
		phi, gamma := discretise(2*math.Pi*hz, cfg.Damping, dt)

		for r := range 2 {
			for c := range 2 {
				m.ad.Set(2*k+r, 2*k+c, phi.At(r, c))
			}

			for j := range nIn {
				m.bd.Set(2*k+r, j, gamma[r]*phiIn.At(k, j))
			}
		}

		for i := range nOut {
			m.c.Set(i, 2*k, phiOut.At(i, k))
		}
	}

	return m, nil
}

// discretise returns the zero-order-hold transition of one mode. The
// exponential of the augmented matrix [[A, b], [0, 0]] dt holds the state
// transition in its top-left block and the input integral in its last column.
func discretise(omega, zeta, dt float64) (*mat.Dense, [2]float64) {
	aug := mat.NewDense(3, 3, []float64{
		0, 1, 0,
		-omega * omega, -2 * zeta * omega, 1,
		0, 0, 0,
	})
	aug.Scale(dt, aug)

	var e mat.Dense
	e.Exp(aug)

	phi := mat.NewDense(2, 2, []float64{
		e.At(0, 0), e.At(0, 1),
		e.At(1, 0), e.At(1, 1),
	})

	return phi, [2]float64{e.At(0, 2), e.At(1, 2)}
}

// Step computes the outputs of the current state and then advances the state
// with the inputs u.
func (m *Modal) Step(u []float64) ([]float64, error) {
	_, nIn := m.bd.Dims()

	if len(u) != nIn {
		return nil, fmt.Errorf("%w: %d inputs, the plant takes %d",
			ErrInvalidConfig, len(u), nIn)
	}

	m.y.MulVec(m.c, m.x)

	m.force.MulVec(m.bd, mat.NewVecDense(nIn, u))
	m.next.MulVec(m.ad, m.x)
	m.next.AddVec(m.next, m.force)
	m.x, m.next = m.next, m.x

	if err := m.check(); err != nil {
		return nil, err
	}

	m.step++

	out := make([]float64, m.y.Len())
	copy(out, m.y.RawVector().Data)

	return out, nil
}

func (m *Modal) check() error {
	for i := 0; i < m.x.Len(); i++ {
		v := m.x.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > m.cfg.Limit {
			return fmt.Errorf("%w: mode %d at step %d", ErrDivergence, i/2, m.step)
		}
	}

	return nil
}

// State returns a copy of the modal state.
func (m *Modal) State() []float64 {
	s := make([]float64, m.x.Len())
	copy(s, m.x.RawVector().Data)

	return s
}

// Steps returns how many steps were taken.
func (m *Modal) Steps() int { return m.step }

// Transition returns the discrete state transition matrix.
func (m *Modal) Transition() mat.Matrix { return mat.DenseCopyOf(m.ad) }
