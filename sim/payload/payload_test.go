package payload

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var r *Registry

	BeforeEach(func() {
		r = NewRegistry()
	})

	It("should define tags", func() {
		t, err := r.Define("MountEncoders", 3)

		Expect(err).ToNot(HaveOccurred())
		Expect(t.Name()).To(Equal("MountEncoders"))
		Expect(t.Len()).To(Equal(3))
		Expect(t.String()).To(Equal("MountEncoders[3]"))
	})

	It("should return the same tag when redefined with the same length", func() {
		a := r.MustDefine("Weight", 1)
		b := r.MustDefine("Weight", 1)

		Expect(b).To(BeIdenticalTo(a))
	})

	It("should reject a redefinition with another length", func() {
		r.MustDefine("Weight", 1)

		_, err := r.Define("Weight", 2)

		Expect(err).To(MatchError(ErrLengthMismatch))
	})

	It("should reject empty names and non-positive lengths", func() {
		_, err := r.Define("", 1)
		Expect(err).To(MatchError(ErrInvalidTag))

		_, err = r.Define("Weight", 0)
		Expect(err).To(MatchError(ErrInvalidTag))
	})

	It("should list tags in registration order", func() {
		a := r.MustDefine("B", 1)
		b := r.MustDefine("A", 2)

		Expect(r.Tags()).To(Equal([]*Tag{a, b}))

		found, ok := r.Lookup("A")
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(b))
	})

	It("should keep tags of equal length distinct", func() {
		a := r.MustDefine("A", 2)
		b := r.MustDefine("B", 2)

		Expect(a).ToNot(BeIdenticalTo(b))
		Expect(Zero(a).Equal(Zero(b))).To(BeFalse())
	})
})

var _ = Describe("Payload", func() {
	var tag *Tag

	BeforeEach(func() {
		tag = NewRegistry().MustDefine("Loads", 3)
	})

	It("should reject a wrong number of values", func() {
		_, err := New(tag, []float64{1, 2})

		Expect(err).To(MatchError(ErrLengthMismatch))
		Expect(func() { MustNew(tag, nil) }).To(Panic())
	})

	It("should not share memory with the caller", func() {
		values := []float64{1, 2, 3}
		p := MustNew(tag, values)

		values[0] = 100
		out := p.Values()
		out[1] = 200

		Expect(p.Values()).To(Equal([]float64{1, 2, 3}))
		Expect(p.At(0)).To(Equal(1.0))
		Expect(p.Slice(1, 3)).To(Equal([]float64{2, 3}))
	})

	It("should create zero payloads of the tag length", func() {
		p := Zero(tag)

		Expect(p.Len()).To(Equal(3))
		Expect(p.Tag()).To(BeIdenticalTo(tag))
		Expect(p.Values()).To(Equal([]float64{0, 0, 0}))
	})

	It("should compare bit by bit", func() {
		a := MustNew(tag, []float64{0, 1, math.NaN()})
		b := MustNew(tag, []float64{0, 1, math.NaN()})
		c := MustNew(tag, []float64{math.Copysign(0, -1), 1, math.NaN()})

		Expect(a.Equal(b)).To(BeTrue())
		Expect(a.Equal(c)).To(BeFalse())
	})
})
