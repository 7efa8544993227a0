package queueing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/payload"
)

var _ = Describe("Buffer", func() {
	var (
		tag *payload.Tag
		buf Buffer
		p1  *payload.Payload
		p2  *payload.Payload
		p3  *payload.Payload
	)

	BeforeEach(func() {
		tag = payload.NewRegistry().MustDefine("Signal", 1)
		p1 = payload.MustNew(tag, []float64{1})
		p2 = payload.MustNew(tag, []float64{2})
		p3 = payload.MustNew(tag, []float64{3})

		buf = MakeBufferBuilder().
			WithCapacity(2).
			Build("Buf")
	})

	It("should allow push and pop", func() {
		Expect(buf.Name()).To(Equal("Buf"))
		Expect(buf.Capacity()).To(Equal(2))
		Expect(buf.CanPush()).To(BeTrue())

		buf.Push(p1)
		Expect(buf.CanPush()).To(BeTrue())
		Expect(buf.Size()).To(Equal(1))

		buf.Push(p2)
		Expect(buf.CanPush()).To(BeFalse())
		Expect(buf.Size()).To(Equal(2))
		Expect(func() {
			buf.Push(p3)
		}).To(Panic())

		Expect(buf.Peek()).To(BeIdenticalTo(p1))
		Expect(buf.Pop()).To(BeIdenticalTo(p1))
		Expect(buf.Size()).To(Equal(1))
		Expect(buf.Pop()).To(BeIdenticalTo(p2))
		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
		Expect(buf.Pop()).To(BeNil())
	})

	It("should pop all in order", func() {
		buf.Push(p1)
		buf.Push(p2)

		Expect(buf.PopAll()).To(Equal([]*payload.Payload{p1, p2}))
		Expect(buf.Size()).To(Equal(0))
		Expect(buf.PopAll()).To(BeNil())
	})

	It("should overwrite the newest payload when full", func() {
		var overwritten []any
		buf.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosBufOverwrite {
				overwritten = append(overwritten, ctx.Detail)
			}
		}))

		Expect(buf.Overwrite(p1)).To(BeNil())
		Expect(buf.Overwrite(p2)).To(BeNil())
		Expect(buf.Overwrite(p3)).To(BeIdenticalTo(p2))

		Expect(buf.PopAll()).To(Equal([]*payload.Payload{p1, p3}))
		Expect(overwritten).To(Equal([]any{p2}))
	})

	It("should never fill up when unlimited", func() {
		buf = MakeBufferBuilder().WithCapacity(Unlimited).Build("Telemetry")

		for i := 0; i < 100; i++ {
			Expect(buf.CanPush()).To(BeTrue())
			buf.Push(p1)
		}

		Expect(buf.Size()).To(Equal(100))
	})

	It("should reject a zero capacity", func() {
		Expect(func() {
			MakeBufferBuilder().WithCapacity(0).Build("Bad")
		}).To(Panic())
	})

	It("should invoke hooks on push and pop", func() {
		var positions []*hooking.HookPos
		buf.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
			Expect(ctx.Domain).To(BeIdenticalTo(buf))
		}))

		buf.Push(p1)
		buf.Pop()

		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosBufPush, HookPosBufPop,
		}))
	})

	It("should clear", func() {
		buf.Push(p2)
		Expect(buf.Size()).To(Equal(1))

		buf.Clear()

		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
	})
})
