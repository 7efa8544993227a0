package windloads

import (
	"fmt"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// Ports are the three load outputs. The profile width is the sum of their
// lengths, in the order M1, M2, Mount.
type Ports struct {
	M1    *payload.Tag
	M2    *payload.Tag
	Mount *payload.Tag
}

func (p Ports) width() int {
	return p.M1.Len() + p.M2.Len() + p.Mount.Len()
}

// Option configures a Loads source.
type Option func(*Loads)

// WithDuration stops the source after seconds of simulated time.
func WithDuration(seconds float64) Option {
	return func(l *Loads) {
		l.steps = int(seconds * l.samplingHz)
	}
}

// StartFrom skips the first steps of the profile.
func StartFrom(step int) Option {
	return func(l *Loads) {
		l.step = step
		l.start = step
	}
}

// Loads is the wind load source node.
type Loads struct {
	ports      Ports
	profile    Profile
	samplingHz float64

	start  int
	step   int
	steps  int
	values []float64
	done   bool
}

// NewLoads creates a source that samples the profile at samplingHz.
func NewLoads(
	ports Ports,
	profile Profile,
	samplingHz float64,
	opts ...Option,
) (*Loads, error) {
	if profile.Width() != ports.width() {
		return nil, fmt.Errorf("%w: profile has %d channels, outputs need %d",
			payload.ErrLengthMismatch, profile.Width(), ports.width())
	}

	if samplingHz <= 0 {
		return nil, fmt.Errorf("sampling frequency must be positive, got %g",
			samplingHz)
	}

	l := &Loads{
		ports:      ports,
		profile:    profile,
		samplingHz: samplingHz,
	}

	for _, opt := range opts {
		opt(l)
	}

	logging.Component("windloads").Debug().
		Float64("sampling_hz", samplingHz).
		Int("start", l.start).
		Int("steps", l.steps).
		Int("channels", profile.Width()).
		Msg("wind loads configured")

	return l, nil
}

// Done reports whether the source stopped emitting.
func (l *Loads) Done() bool { return l.done }

func (l *Loads) Inputs() []*payload.Tag { return nil }

func (l *Loads) Outputs() []*payload.Tag {
	return []*payload.Tag{l.ports.M1, l.ports.M2, l.ports.Mount}
}

func (l *Loads) Read(*payload.Payload) {}

func (l *Loads) Update() error {
	if l.done || (l.steps > 0 && l.step-l.start >= l.steps) {
		l.stop()
		return nil
	}

	values := make([]float64, l.profile.Width())
	if !l.profile.At(float64(l.step)/l.samplingHz, values) {
		l.stop()
		return nil
	}

	l.values = values
	l.step++

	return nil
}

func (l *Loads) stop() {
	if !l.done {
		logging.Component("windloads").Info().
			Int("step", l.step).
			Msg("wind loads exhausted")
	}

	l.done = true
	l.values = nil
}

func (l *Loads) Write(tag *payload.Tag) (*payload.Payload, error) {
	if l.values == nil {
		return nil, nil
	}

	lo := 0
	for _, t := range l.Outputs() {
		if t == tag {
			return payload.New(tag, l.values[lo:lo+t.Len()])
		}

		lo += t.Len()
	}

	return nil, fmt.Errorf("%w: %s is not a wind load output",
		payload.ErrInvalidTag, tag)
}
