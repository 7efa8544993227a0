package m1

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dosflow/dosflow/sim/payload"
)

func filled(tag *payload.Tag, v float64) *payload.Payload {
	values := make([]float64, tag.Len())
	for i := range values {
		values[i] = v
	}

	return payload.MustNew(tag, values)
}

var _ = Describe("Hardpoints", func() {
	var (
		reg        *payload.Registry
		cmd, force *payload.Tag
	)

	BeforeEach(func() {
		reg = payload.NewRegistry()
		cmd = reg.MustDefine("M1RBMcmd", NumHardpoints)
		force = reg.MustDefine("OSSHardpointDeltaF", NumHardpoints)
	})

	It("should reject a lag out of range", func() {
		_, err := NewHardpoints(cmd, force, 1, 0)
		Expect(err).To(HaveOccurred())
	})

	It("should lag toward the commanded force", func() {
		h, err := NewHardpoints(cmd, force, 2, 0.5)
		Expect(err).ToNot(HaveOccurred())

		h.Read(filled(cmd, 1))
		Expect(h.Update()).To(Succeed())
		p, _ := h.Write(force)
		Expect(p.Values()).To(HaveEach(Equal(1.0)))

		Expect(h.Update()).To(Succeed())
		p, _ = h.Write(force)
		Expect(p.Values()).To(HaveEach(Equal(1.5)))
	})
})

var _ = Describe("LoadCells", func() {
	var (
		reg   *payload.Registry
		ports LoadCellPorts
	)

	BeforeEach(func() {
		reg = payload.NewRegistry()
		ports = LoadCellPorts{
			DeltaF:        reg.MustDefine("OSSHardpointDeltaF", NumHardpoints),
			Displacements: reg.MustDefine("OSSHardpointD", 2*NumHardpoints),
		}

		for i := range ports.Segments {
			ports.Segments[i] = reg.MustDefine(
				fmt.Sprintf("S%dHPLC", i+1), HardpointsPerSegment)
		}
	})

	It("should reject a segment output of the wrong length", func() {
		ports.Segments[3] = reg.MustDefine("Wrong", 5)
		_, err := NewLoadCells(ports, 1)
		Expect(err).To(MatchError(payload.ErrLengthMismatch))
	})

	It("should average a window and split it per segment", func() {
		l, err := NewLoadCells(ports, 0)
		Expect(err).ToNot(HaveOccurred())

		f := make([]float64, NumHardpoints)
		for i := range f {
			f[i] = float64(i)
		}

		l.Read(payload.MustNew(ports.DeltaF, f))
		l.Read(filled(ports.DeltaF, 0))
		Expect(l.Update()).To(Succeed())

		p, err := l.Write(ports.Segments[1])
		Expect(err).ToNot(HaveOccurred())
		Expect(p.Values()).To(Equal([]float64{3, 3.5, 4, 4.5, 5, 5.5}))
	})

	It("should subtract the hardpoint stroke", func() {
		l, _ := NewLoadCells(ports, 10)

		d := make([]float64, 2*NumHardpoints)
		for i := 0; i < len(d); i += 2 {
			d[i] = 0.1
		}

		l.Read(payload.MustNew(ports.Displacements, d))
		Expect(l.Update()).To(Succeed())

		p, _ := l.Write(ports.Segments[6])
		Expect(p.Values()).To(HaveEach(BeNumerically("~", -1, 1e-12)))
	})

	It("should start a new window after each update", func() {
		l, _ := NewLoadCells(ports, 0)

		l.Read(filled(ports.DeltaF, 4))
		Expect(l.Update()).To(Succeed())

		l.Read(filled(ports.DeltaF, 2))
		Expect(l.Update()).To(Succeed())

		p, _ := l.Write(ports.Segments[0])
		Expect(p.Values()).To(HaveEach(Equal(2.0)))
	})

	It("should reject a foreign tag", func() {
		l, _ := NewLoadCells(ports, 0)
		Expect(l.Update()).To(Succeed())

		_, err := l.Write(ports.DeltaF)
		Expect(err).To(MatchError(payload.ErrInvalidTag))
	})
})

var _ = Describe("Actuators", func() {
	var (
		reg           *payload.Registry
		loads, forces *payload.Tag
	)

	BeforeEach(func() {
		reg = payload.NewRegistry()
		loads = reg.MustDefine("S1HPLC", HardpointsPerSegment)
		forces = reg.MustDefine("M1ActuatorsSegment1", HardpointsPerSegment)
	})

	It("should reject a segment id out of range", func() {
		_, err := NewActuators(0, loads, forces, 1)
		Expect(err).To(MatchError(ErrInvalidSegment))

		_, err = NewActuators(8, loads, forces, 1)
		Expect(err).To(MatchError(ErrInvalidSegment))
	})

	It("should integrate the loads away", func() {
		a, err := NewActuators(1, loads, forces, 0.5)
		Expect(err).ToNot(HaveOccurred())
		Expect(a.ID()).To(Equal(1))

		a.Read(filled(loads, 2))
		Expect(a.Update()).To(Succeed())
		Expect(a.Update()).To(Succeed())

		p, _ := a.Write(forces)
		Expect(p.Values()).To(HaveEach(Equal(-2.0)))
	})
})
