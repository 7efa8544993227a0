package asms

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// A SegmentController is the inner control loop of one segment. Dispatch
// hands it a command and a feedback vector and returns its outputs for the
// current state; Advance then steps the state using the last dispatched
// inputs. Each controller owns its state.
type SegmentController interface {
	Dispatch(command, feedback []float64) (faceSheet, rigidBody []float64, err error)
	Advance() error
}

// Gains parameterizes the piston/tip/tilt and fluid damping loop.
type Gains struct {
	// Proportional gain on the command error.
	Kp float64
	// Integral gain.
	Ki float64
	// Integrator leak per step, in [0, 1).
	Leak float64
	// Sampling period in seconds.
	Dt float64
	// Rigid-body force gain on the feedback.
	Krb float64
}

// DefaultGains returns the gains used for every segment of the stock model.
func DefaultGains() Gains {
	return Gains{
		Kp:   1.0,
		Ki:   40.0,
		Leak: 1e-4,
		Dt:   1.0 / 8000,
		Krb:  0.25,
	}
}

// StateSpace is a discrete linear controller
//
//	x[n+1] = A*x[n] + B*u[n]
//	y[n]   = C*x[n] + D*u[n]
//
// with u = [command; feedback] and y = [face sheet forces; rigid-body forces].
type StateSpace struct {
	schema Schema
	a, b   *mat.Dense
	c, d   *mat.Dense
	x      *mat.VecDense
	u      *mat.VecDense
	steps  int
}

// NewStateSpace creates a controller from its matrices. The state starts at
// zero.
func NewStateSpace(schema Schema, a, b, c, d *mat.Dense) (*StateSpace, error) {
	nx, nxc := a.Dims()
	if nx != nxc {
		return nil, fmt.Errorf("system matrix must be square, got %dx%d", nx, nxc)
	}

	nu := schema.CommandLen + schema.FeedbackLen
	ny := schema.SegmentLen()

	if r, cols := b.Dims(); r != nx || cols != nu {
		return nil, fmt.Errorf("input matrix must be %dx%d, got %dx%d",
			nx, nu, r, cols)
	}

	if r, cols := c.Dims(); r != ny || cols != nx {
		return nil, fmt.Errorf("output matrix must be %dx%d, got %dx%d",
			ny, nx, r, cols)
	}

	if r, cols := d.Dims(); r != ny || cols != nu {
		return nil, fmt.Errorf("feedthrough matrix must be %dx%d, got %dx%d",
			ny, nu, r, cols)
	}

	return &StateSpace{
		schema: schema,
		a:      a,
		b:      b,
		c:      c,
		d:      d,
		x:      mat.NewVecDense(nx, nil),
	}, nil
}

// NewPTTController builds the piston/tip/tilt loop with fluid damping: a
// leaky integrator on the command error drives the center-of-pressure modal
// forces, the rigid-body modal forces follow the measured displacements and
// the rigid-body forces push back on them.
func NewPTTController(schema Schema, g Gains) (*StateSpace, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	cp, _ := schema.Slice(CPModalForce)
	rb, _ := schema.Slice(RBModalForce)

	n := schema.CommandLen
	if schema.FeedbackLen != n || cp.Len != n || rb.Len != n ||
		schema.RigidBodyLen != n {
		return nil, fmt.Errorf("%w: the PTT loop needs equal command, "+
			"feedback and slice lengths", ErrInvalidSchema)
	}

	nu := 2 * n
	ny := schema.SegmentLen()

	a := mat.NewDense(n, n, nil)
	b := mat.NewDense(n, nu, nil)
	c := mat.NewDense(ny, n, nil)
	d := mat.NewDense(ny, nu, nil)

	for i := 0; i < n; i++ {
		a.Set(i, i, 1-g.Leak)
		b.Set(i, i, g.Dt)
		b.Set(i, n+i, -g.Dt)

		c.Set(cp.Offset+i, i, g.Ki)
		d.Set(cp.Offset+i, i, g.Kp)
		d.Set(cp.Offset+i, n+i, -g.Kp)

		d.Set(rb.Offset+i, n+i, 1)

		d.Set(schema.FaceSheetLen+i, n+i, -g.Krb)
	}

	return NewStateSpace(schema, a, b, c, d)
}

// Dispatch implements SegmentController.
func (s *StateSpace) Dispatch(command, feedback []float64) ([]float64, []float64, error) {
	if len(command) != s.schema.CommandLen {
		return nil, nil, fmt.Errorf("command has %d values, want %d",
			len(command), s.schema.CommandLen)
	}

	if len(feedback) != s.schema.FeedbackLen {
		return nil, nil, fmt.Errorf("feedback has %d values, want %d",
			len(feedback), s.schema.FeedbackLen)
	}

	u := mat.NewVecDense(len(command)+len(feedback), nil)
	for i, v := range command {
		u.SetVec(i, v)
	}

	for i, v := range feedback {
		u.SetVec(len(command)+i, v)
	}

	y := mat.NewVecDense(s.schema.SegmentLen(), nil)
	y.MulVec(s.c, s.x)

	du := mat.NewVecDense(s.schema.SegmentLen(), nil)
	du.MulVec(s.d, u)
	y.AddVec(y, du)

	s.u = u

	raw := y.RawVector().Data
	faceSheet := append([]float64(nil), raw[:s.schema.FaceSheetLen]...)
	rigidBody := append([]float64(nil), raw[s.schema.FaceSheetLen:]...)

	return faceSheet, rigidBody, nil
}

// Advance implements SegmentController. Advancing before any dispatch steps
// the state with zero input.
func (s *StateSpace) Advance() error {
	nx, _ := s.a.Dims()

	next := mat.NewVecDense(nx, nil)
	next.MulVec(s.a, s.x)

	if s.u != nil {
		bu := mat.NewVecDense(nx, nil)
		bu.MulVec(s.b, s.u)
		next.AddVec(next, bu)
	}

	s.x = next
	s.steps++

	return nil
}

// State returns a copy of the controller state.
func (s *StateSpace) State() []float64 {
	return append([]float64(nil), s.x.RawVector().Data...)
}

// Steps returns how many times the controller advanced.
func (s *StateSpace) Steps() int {
	return s.steps
}
