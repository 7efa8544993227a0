// Package asms implements the adaptive secondary mirror segment controller
// aggregate: seven per-segment controllers behind one interface, two run-wide
// gains and a fixed, schema-described output layout.
package asms

import (
	"errors"
	"fmt"
	"sort"
)

// NumSegments is the number of mirror segments.
const NumSegments = 7

// ErrInvalidSegmentID is returned for segment ids outside 1..7.
var ErrInvalidSegmentID = errors.New("invalid segment id")

// ErrInvalidSchema is returned by Schema.Validate.
var ErrInvalidSchema = errors.New("invalid schema")

// SliceName names a tagged sub-slice of a segment output.
type SliceName string

// Slices of the face sheet forces.
const (
	CPModalForce SliceName = "CPModalForce"
	RBModalForce SliceName = "RBModalForce"
)

// OutputName names one of the two outputs of a segment controller.
type OutputName string

// Segment controller outputs.
const (
	FaceSheetForces OutputName = "FaceSheetForces"
	RigidBodyForces OutputName = "RigidBodyForces"
)

// SliceSpec places a tagged slice inside the face sheet forces.
type SliceSpec struct {
	Slice  SliceName
	Offset int
	Len    int
}

// A Schema fixes the vector lengths of one segment controller and where
// the tagged slices are.
type Schema struct {
	CommandLen   int
	FeedbackLen  int
	FaceSheetLen int
	RigidBodyLen int
	Slices       []SliceSpec
}

// DefaultSchema is the layout of the ASM inner loop: a 3-mode command, 3
// rigid-body modal displacements, 6 face sheet forces split into
// center-of-pressure and rigid-body modal forces, 3 rigid-body forces.
func DefaultSchema() Schema {
	return Schema{
		CommandLen:   3,
		FeedbackLen:  3,
		FaceSheetLen: 6,
		RigidBodyLen: 3,
		Slices: []SliceSpec{
			{Slice: CPModalForce, Offset: 0, Len: 3},
			{Slice: RBModalForce, Offset: 3, Len: 3},
		},
	}
}

// Validate checks that the slices are positive, inside the face sheet
// forces and disjoint.
func (s Schema) Validate() error {
	if s.CommandLen <= 0 || s.FeedbackLen <= 0 ||
		s.FaceSheetLen <= 0 || s.RigidBodyLen < 0 {
		return fmt.Errorf("%w: non-positive vector length", ErrInvalidSchema)
	}

	slices := append([]SliceSpec(nil), s.Slices...)
	sort.Slice(slices, func(i, j int) bool {
		return slices[i].Offset < slices[j].Offset
	})

	end := 0
	for _, sl := range slices {
		if sl.Len <= 0 || sl.Offset < end || sl.Offset+sl.Len > s.FaceSheetLen {
			return fmt.Errorf("%w: slice %s [%d:%d] in %d face sheet forces",
				ErrInvalidSchema, sl.Slice, sl.Offset, sl.Offset+sl.Len,
				s.FaceSheetLen)
		}

		end = sl.Offset + sl.Len
	}

	for _, name := range []SliceName{CPModalForce, RBModalForce} {
		if _, ok := s.Slice(name); !ok {
			return fmt.Errorf("%w: missing slice %s", ErrInvalidSchema, name)
		}
	}

	return nil
}

// Slice finds a slice by name.
func (s Schema) Slice(name SliceName) (SliceSpec, bool) {
	for _, sl := range s.Slices {
		if sl.Slice == name {
			return sl, true
		}
	}

	return SliceSpec{}, false
}

// SegmentLen is the number of values one segment contributes to the
// collected output.
func (s Schema) SegmentLen() int {
	return s.FaceSheetLen + s.RigidBodyLen
}

// CollectedLen is the length of the collected output.
func (s Schema) CollectedLen() int {
	return NumSegments * s.SegmentLen()
}

// Row is one line of the collected output layout.
type Row struct {
	Segment int
	Output  OutputName
	Slice   SliceName
	Offset  int
	Len     int
}

// Layout lists where every segment output and every tagged slice sits in
// the collected output, in ascending segment order.
func (s Schema) Layout() []Row {
	rows := make([]Row, 0, NumSegments*(2+len(s.Slices)))

	for sid := 1; sid <= NumSegments; sid++ {
		base := (sid - 1) * s.SegmentLen()

		rows = append(rows, Row{
			Segment: sid,
			Output:  FaceSheetForces,
			Offset:  base,
			Len:     s.FaceSheetLen,
		})

		for _, sl := range s.Slices {
			rows = append(rows, Row{
				Segment: sid,
				Output:  FaceSheetForces,
				Slice:   sl.Slice,
				Offset:  base + sl.Offset,
				Len:     sl.Len,
			})
		}

		rows = append(rows, Row{
			Segment: sid,
			Output:  RigidBodyForces,
			Offset:  base + s.FaceSheetLen,
			Len:     s.RigidBodyLen,
		})
	}

	return rows
}
