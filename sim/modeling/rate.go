package modeling

import (
	"errors"
	"fmt"
)

// ErrInvalidRate is returned for rate ratios that the engine cannot drive.
var ErrInvalidRate = errors.New("invalid rate")

// RateRatio is the number of gathers consumed and the number of ticks a
// result is emitted on, per period.
//
//	(1,1) gathers and emits every tick
//	(R,1) gathers every tick and emits once every R ticks
//	(1,R) gathers once and holds the result for R ticks
type RateRatio struct {
	In  int
	Out int
}

// SingleRate is the (1,1) ratio.
var SingleRate = RateRatio{In: 1, Out: 1}

// DownSample returns the (r,1) ratio.
func DownSample(r int) RateRatio {
	return RateRatio{In: r, Out: 1}
}

// Hold returns the (1,r) ratio.
func Hold(r int) RateRatio {
	return RateRatio{In: 1, Out: r}
}

// Validate checks that both sides are positive and at least one of them is 1.
func (r RateRatio) Validate() error {
	if r.In < 1 || r.Out < 1 {
		return fmt.Errorf("%w: %s has a non-positive side", ErrInvalidRate, r)
	}

	if r.In != 1 && r.Out != 1 {
		return fmt.Errorf("%w: %s converts in both directions",
			ErrInvalidRate, r)
	}

	return nil
}

func (r RateRatio) String() string {
	return fmt.Sprintf("(%d,%d)", r.In, r.Out)
}
