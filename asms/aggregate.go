package asms

import (
	"fmt"
)

// Outputs is what one segment controller produced on one activation.
type Outputs struct {
	FaceSheet []float64
	RigidBody []float64
}

// Option configures an Aggregate.
type Option func(*Aggregate)

// WithModalForcesGain sets the gain on the center-of-pressure modal forces.
func WithModalForcesGain(g float64) Option {
	return func(a *Aggregate) {
		a.modalForcesGain = g
	}
}

// WithFluidDampingGain sets the gain on the rigid-body modal forces.
func WithFluidDampingGain(g float64) Option {
	return func(a *Aggregate) {
		a.fluidDampingGain = g
	}
}

// WithSchema replaces the default output schema.
func WithSchema(s Schema) Option {
	return func(a *Aggregate) {
		a.schema = s
	}
}

// WithControllers replaces the default PTT controllers. Controller i serves
// segment i+1.
func WithControllers(ctrls [NumSegments]SegmentController) Option {
	return func(a *Aggregate) {
		a.controllers = ctrls
	}
}

// An Aggregate drives the seven segment controllers as one.
type Aggregate struct {
	schema           Schema
	controllers      [NumSegments]SegmentController
	modalForcesGain  float64
	fluidDampingGain float64

	raw       [NumSegments]Outputs
	processed [NumSegments]Outputs
}

// New creates an aggregate with a modal forces gain of 0.5, a fluid damping
// gain of -9.1 and one PTT controller per segment unless options say
// otherwise.
func New(opts ...Option) (*Aggregate, error) {
	a := &Aggregate{
		schema:           DefaultSchema(),
		modalForcesGain:  0.5,
		fluidDampingGain: -9.1,
	}

	for _, opt := range opts {
		opt(a)
	}

	if err := a.schema.Validate(); err != nil {
		return nil, err
	}

	for i := range a.controllers {
		if a.controllers[i] != nil {
			continue
		}

		ctrl, err := NewPTTController(a.schema, DefaultGains())
		if err != nil {
			return nil, err
		}

		a.controllers[i] = ctrl
	}

	for i := range a.raw {
		a.raw[i] = a.zeroOutputs()
		a.processed[i] = a.zeroOutputs()
	}

	return a, nil
}

func (a *Aggregate) zeroOutputs() Outputs {
	return Outputs{
		FaceSheet: make([]float64, a.schema.FaceSheetLen),
		RigidBody: make([]float64, a.schema.RigidBodyLen),
	}
}

// Schema returns the output schema.
func (a *Aggregate) Schema() Schema {
	return a.schema
}

// ModalForcesGain returns the gain on the center-of-pressure modal forces.
func (a *Aggregate) ModalForcesGain() float64 {
	return a.modalForcesGain
}

// FluidDampingGain returns the gain on the rigid-body modal forces.
func (a *Aggregate) FluidDampingGain() float64 {
	return a.fluidDampingGain
}

// Controller returns the controller of a segment.
func (a *Aggregate) Controller(segmentID int) (SegmentController, error) {
	if err := checkSegmentID(segmentID); err != nil {
		return nil, err
	}

	return a.controllers[segmentID-1], nil
}

func checkSegmentID(segmentID int) error {
	if segmentID < 1 || segmentID > NumSegments {
		return fmt.Errorf("%w: %d is not in 1..%d",
			ErrInvalidSegmentID, segmentID, NumSegments)
	}

	return nil
}

// Dispatch routes the command and the feedback to the controller of the
// segment and keeps its outputs for ApplyGains and CollectOutputs. An id
// outside 1..7 fails without touching any controller.
func (a *Aggregate) Dispatch(
	segmentID int,
	command, feedback []float64,
) (Outputs, error) {
	if err := checkSegmentID(segmentID); err != nil {
		return Outputs{}, err
	}

	fs, rb, err := a.controllers[segmentID-1].Dispatch(command, feedback)
	if err != nil {
		return Outputs{}, fmt.Errorf("segment %d: %w", segmentID, err)
	}

	if len(fs) != a.schema.FaceSheetLen || len(rb) != a.schema.RigidBodyLen {
		return Outputs{}, fmt.Errorf("segment %d: controller returned %d+%d "+
			"values, want %d+%d", segmentID, len(fs), len(rb),
			a.schema.FaceSheetLen, a.schema.RigidBodyLen)
	}

	out := Outputs{FaceSheet: fs, RigidBody: rb}
	a.raw[segmentID-1] = out

	return out, nil
}

// ApplyGains returns a copy of the outputs with the center-of-pressure
// modal forces scaled by the modal forces gain and the rigid-body modal
// forces scaled by the fluid damping gain.
func (a *Aggregate) ApplyGains(outputs [NumSegments]Outputs) [NumSegments]Outputs {
	cp, _ := a.schema.Slice(CPModalForce)
	rb, _ := a.schema.Slice(RBModalForce)

	var gained [NumSegments]Outputs
	for i, o := range outputs {
		fs := append([]float64(nil), o.FaceSheet...)
		scale(fs[cp.Offset:cp.Offset+cp.Len], a.modalForcesGain)
		scale(fs[rb.Offset:rb.Offset+rb.Len], a.fluidDampingGain)

		gained[i] = Outputs{
			FaceSheet: fs,
			RigidBody: append([]float64(nil), o.RigidBody...),
		}
	}

	return gained
}

func scale(v []float64, g float64) {
	for i := range v {
		v[i] *= g
	}
}

// Process applies the gains to the last dispatched outputs.
func (a *Aggregate) Process() {
	a.processed = a.ApplyGains(a.raw)
}

// CollectOutputs concatenates the processed outputs in ascending segment
// order, following Schema.Layout.
func (a *Aggregate) CollectOutputs() []float64 {
	collected := make([]float64, 0, a.schema.CollectedLen())

	for _, o := range a.processed {
		collected = append(collected, o.FaceSheet...)
		collected = append(collected, o.RigidBody...)
	}

	return collected
}

// CollectSlice concatenates one processed slice of every segment, in
// ascending segment order.
func (a *Aggregate) CollectSlice(name SliceName) []float64 {
	sl, ok := a.schema.Slice(name)
	if !ok {
		return nil
	}

	collected := make([]float64, 0, NumSegments*sl.Len)
	for _, o := range a.processed {
		collected = append(collected, o.FaceSheet[sl.Offset:sl.Offset+sl.Len]...)
	}

	return collected
}

// Advance steps every controller once. It stops at the first error.
func (a *Aggregate) Advance() error {
	for i, ctrl := range a.controllers {
		if err := ctrl.Advance(); err != nil {
			return fmt.Errorf("segment %d: %w", i+1, err)
		}
	}

	return nil
}
