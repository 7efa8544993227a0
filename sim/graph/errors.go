package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dosflow/dosflow/sim/modeling"
)

// ErrAborted is returned when running a model that a transform error has
// already stopped.
var ErrAborted = errors.New("model aborted")

// ErrorKind classifies validation errors.
type ErrorKind int

// Validation error kinds.
const (
	UnconnectedInput ErrorKind = iota
	LengthMismatch
	DuplicateConnection
	InvalidMultiplex
	TagMismatch
	UnknownPort
	AlgebraicLoop
	InvalidRate
	BestEffortOnControlPath
	DuplicateNode
	InvalidName
)

var kindNames = map[ErrorKind]string{
	UnconnectedInput:        "UnconnectedInput",
	LengthMismatch:          "LengthMismatch",
	DuplicateConnection:     "DuplicateConnection",
	InvalidMultiplex:        "InvalidMultiplex",
	TagMismatch:             "TagMismatch",
	UnknownPort:             "UnknownPort",
	AlgebraicLoop:           "AlgebraicLoop",
	InvalidRate:             "InvalidRate",
	BestEffortOnControlPath: "BestEffortOnControlPath",
	DuplicateNode:           "DuplicateNode",
	InvalidName:             "InvalidName",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// A ValidationError is a problem with the shape of a graph found while it is
// being built.
type ValidationError struct {
	Kind   ErrorKind
	Node   string
	Port   string
	Detail string
}

func (e *ValidationError) Error() string {
	var b strings.Builder

	b.WriteString(e.Kind.String())

	switch {
	case e.Port != "":
		fmt.Fprintf(&b, " at %s", e.Port)
	case e.Node != "":
		fmt.Fprintf(&b, " at %s", e.Node)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	return b.String()
}

// Is matches another *ValidationError of the same kind, so that
// errors.Is(err, &ValidationError{Kind: AlgebraicLoop}) works.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// ValidationErrors is every problem found by Build.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}

	return fmt.Sprintf("%d validation error(s): %s",
		len(errs), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (errs ValidationErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}

	return out
}

// Has tells if any error is of the given kind.
func (errs ValidationErrors) Has(kind ErrorKind) bool {
	for _, e := range errs {
		if e.Kind == kind {
			return true
		}
	}

	return false
}

// Kinds lists the kind of every error, in order.
func (errs ValidationErrors) Kinds() []ErrorKind {
	kinds := make([]ErrorKind, len(errs))
	for i, e := range errs {
		kinds[i] = e.Kind
	}

	return kinds
}

// A TransformError stops a run. It names the failing node and the tick.
type TransformError struct {
	Node string
	Tick uint64
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("node %s failed at tick %d: %v", e.Node, e.Tick, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// CapacityError reports a payload dropped by a best-effort edge.
type CapacityError = modeling.CapacityError
