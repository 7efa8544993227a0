package clients

import (
	"fmt"

	"github.com/dosflow/dosflow/sim/payload"
)

func errTagLen(tag *payload.Tag, want int) error {
	return fmt.Errorf("%w: %s should hold %d values",
		payload.ErrLengthMismatch, tag, want)
}
