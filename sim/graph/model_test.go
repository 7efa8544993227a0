package graph

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/payload"
)

type push struct {
	edge   string
	tick   uint64
	values []float64
}

func recordPushes(m *Model) *[]push {
	var (
		lock   sync.Mutex
		pushes []push
	)

	for _, e := range m.Edges() {
		e.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos != modeling.HookPosEdgePush {
				return
			}

			edge := ctx.Domain.(*modeling.Edge)
			p := ctx.Item.(*payload.Payload)

			lock.Lock()
			defer lock.Unlock()
			pushes = append(pushes, push{edge.Name(), ctx.Tick, p.Values()})
		}))
	}

	return &pushes
}

var _ = Describe("Model", func() {
	var (
		reg     *payload.Registry
		x, y, s *payload.Tag
		g       *Graph
		quiet   ModelOption
	)

	BeforeEach(func() {
		reg = payload.NewRegistry()
		x = reg.MustDefine("X", 1)
		y = reg.MustDefine("Y", 1)
		s = reg.MustDefine("S", 2)
		g = New("Test")
		quiet = WithLogger(zerolog.Nop())
	})

	It("should do nothing when running zero ticks", func() {
		src := &source{tag: x, script: func(int) []float64 { return []float64{1} }}
		a := g.MustAddNode("Src", src, modeling.SingleRate)
		rec := newRecorder(x)
		b := g.MustAddNode("Sink", rec, modeling.SingleRate)
		g.Output(a, x).Bootstrap().Into(b)

		m, err := g.Build(quiet)
		Expect(err).ToNot(HaveOccurred())

		Expect(m.Run(0)).To(Succeed())

		Expect(m.Now()).To(BeZero())
		Expect(src.tick).To(BeZero())
		Expect(m.Edges()[0].Size()).To(BeZero())
		Expect(rec.got).To(BeEmpty())
		Expect(rec.finished).To(BeEmpty())
	})

	It("should down-sample four gathers into one emission", func() {
		src := g.MustAddNode("Source", constant(x, 1), modeling.SingleRate)
		sum := g.MustAddNode("Sum", &summer{in: x, out: y}, modeling.DownSample(4))
		rec := newRecorder(y)
		sink := g.MustAddNode("Sink", rec, modeling.SingleRate)
		g.Connect(src, x, sum)
		g.Connect(sum, y, sink)

		m, err := g.Build(quiet)
		Expect(err).ToNot(HaveOccurred())
		pushes := recordPushes(m)

		Expect(m.Run(8)).To(Succeed())

		Expect(rec.got[y]).To(Equal([][]float64{{4}, {4}}))

		var ticks []uint64
		for _, p := range *pushes {
			if p.edge == "Sum.Y->Sink" {
				ticks = append(ticks, p.tick)
			}
		}
		Expect(ticks).To(Equal([]uint64{3, 7}))
		Expect(sum.Emissions()).To(Equal(uint64(2)))
	})

	It("should merge only once both inputs are present", func() {
		a := reg.MustDefine("A", 2)
		b := reg.MustDefine("B", 2)
		srcA := g.MustAddNode("SrcA", &source{tag: a, script: func(tick int) []float64 {
			if tick < 1 {
				return nil
			}
			return []float64{1, 2}
		}}, modeling.SingleRate)
		srcB := g.MustAddNode("SrcB", &source{tag: b, script: func(tick int) []float64 {
			if tick != 3 {
				return nil
			}
			return []float64{10, 20}
		}}, modeling.SingleRate)
		add := g.MustAddNode("Adder", newAdder(a, b, s), modeling.SingleRate)
		rec := newRecorder(s)
		sink := g.MustAddNode("Sink", rec, modeling.SingleRate)
		g.Connect(srcA, a, add)
		g.Connect(srcB, b, add)
		g.Connect(add, s, sink)

		m, err := g.Build(quiet)
		Expect(err).ToNot(HaveOccurred())
		pushes := recordPushes(m)

		Expect(m.Run(2)).To(Succeed())
		Expect(rec.got[s]).To(BeEmpty())

		Expect(m.Run(3)).To(Succeed())

		var first *push
		for i, p := range *pushes {
			if p.edge == "Adder.S->Sink" {
				first = &(*pushes)[i]
				break
			}
		}
		Expect(first).ToNot(BeNil())
		Expect(first.tick).To(Equal(uint64(3)))
		Expect(rec.got[s][0]).To(Equal([]float64{11, 22}))
	})

	Context("with a bootstrap edge", func() {
		It("should deliver a zero payload on tick 0", func() {
			v := reg.MustDefine("V", 3)
			src := g.MustAddNode("Src", constant(v, 1, 2, 3), modeling.SingleRate)
			rec := newRecorder(v)
			sink := g.MustAddNode("Sink", rec, modeling.SingleRate)
			g.Output(src, v).Bootstrap().Into(sink)

			m, err := g.Build(quiet)
			Expect(err).ToNot(HaveOccurred())

			Expect(m.Tick()).To(Succeed())
			Expect(rec.got[v]).To(Equal([][]float64{{0, 0, 0}}))

			Expect(m.Tick()).To(Succeed())
			Expect(rec.got[v]).To(Equal([][]float64{{0, 0, 0}, {1, 2, 3}}))
		})

		It("should close a loop with exactly one tick of delay", func() {
			plant := &gain{in: x, out: y, k: 1, offset: 1}
			ctrl := &gain{in: y, out: x, k: 2}
			p := g.MustAddNode("Plant", plant, modeling.SingleRate)
			c := g.MustAddNode("Ctrl", ctrl, modeling.SingleRate)
			g.Connect(p, y, c)
			g.Output(c, x).Bootstrap().Into(p)

			m, err := g.Build(quiet)
			Expect(err).ToNot(HaveOccurred())
			Expect(m.Run(4)).To(Succeed())

			Expect(ctrl.seen).To(Equal([][]float64{{1}, {3}, {7}, {15}}))
			Expect(plant.seen).To(Equal([][]float64{{0}, {2}, {6}, {14}}))
		})

		It("should delay by one tick when the producer runs first", func() {
			tick := 0
			src := &source{tag: x, script: func(t int) []float64 {
				tick = t
				return []float64{float64(t + 1)}
			}}
			a := g.MustAddNode("Src", src, modeling.SingleRate)
			rec := newRecorder(x)
			b := g.MustAddNode("Sink", rec, modeling.SingleRate)
			g.Output(a, x).Bootstrap().Into(b)

			m, err := g.Build(quiet)
			Expect(err).ToNot(HaveOccurred())
			Expect(m.Order()[0]).To(BeIdenticalTo(a))

			Expect(m.Run(3)).To(Succeed())

			Expect(tick).To(Equal(2))
			Expect(rec.got[x]).To(Equal([][]float64{{0}, {1}, {2}}))
		})
	})

	Context("when a transform fails", func() {
		var (
			m      *Model
			rec    *recorder
			failed *gain
		)

		BeforeEach(func() {
			failed = &gain{in: x, out: y, k: 1, failAt: 3}
			src := g.MustAddNode("Src", constant(x, 5), modeling.SingleRate)
			mid := g.MustAddNode("Gain", failed, modeling.SingleRate)
			rec = newRecorder(y)
			sink := g.MustAddNode("Sink", rec, modeling.SingleRate)
			g.Connect(src, x, mid)
			g.Connect(mid, y, sink)

			var err error
			m, err = g.Build(quiet)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should abort with the node and the tick", func() {
			aborts := 0
			m.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosRunAbort {
					aborts++
				}
			}))

			err := m.Run(10)

			var te *TransformError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Node).To(Equal("Gain"))
			Expect(te.Tick).To(Equal(uint64(2)))
			Expect(errors.Is(err, errBoom)).To(BeTrue())
			Expect(m.Aborted()).To(BeTrue())
			Expect(m.Now()).To(Equal(uint64(2)))
			Expect(aborts).To(Equal(1))
		})

		It("should keep the prefix and mark it incomplete", func() {
			Expect(m.Run(10)).ToNot(Succeed())

			Expect(rec.got[y]).To(Equal([][]float64{{5}, {5}}))
			Expect(rec.finished).To(Equal([]bool{false}))
		})

		It("should refuse to run again", func() {
			Expect(m.Run(10)).ToNot(Succeed())

			Expect(m.Run(1)).To(MatchError(ErrAborted))
			Expect(m.Tick()).To(MatchError(ErrAborted))
			Expect(failed.updates).To(Equal(3))
		})
	})

	It("should tell finishers about a complete run", func() {
		src := g.MustAddNode("Src", constant(x, 1), modeling.SingleRate)
		rec := newRecorder(x)
		sink := g.MustAddNode("Sink", rec, modeling.SingleRate)
		g.Connect(src, x, sink)

		m, err := g.Build(quiet)
		Expect(err).ToNot(HaveOccurred())

		Expect(m.Run(3)).To(Succeed())
		Expect(m.Run(2)).To(Succeed())

		Expect(rec.finished).To(Equal([]bool{true, true}))
		Expect(rec.got[x]).To(HaveLen(5))
		Expect(m.Now()).To(Equal(uint64(5)))
	})

	Context("with a horizon", func() {
		var (
			m   *Model
			rec *recorder
		)

		BeforeEach(func() {
			src := g.MustAddNode("Src", constant(x, 1), modeling.SingleRate)
			rec = newRecorder(x)
			sink := g.MustAddNode("Sink", rec, modeling.SingleRate)
			g.Connect(src, x, sink)

			var err error
			m, err = g.Build(quiet, WithHorizon(5))
			Expect(err).ToNot(HaveOccurred())
		})

		It("should finish only when the horizon is reached", func() {
			Expect(m.Run(3)).To(Succeed())
			Expect(rec.finished).To(BeEmpty())
			Expect(m.Finished()).To(BeFalse())

			Expect(m.Run(2)).To(Succeed())
			Expect(rec.finished).To(Equal([]bool{true}))
			Expect(m.Finished()).To(BeTrue())

			Expect(m.Run(1)).To(Succeed())
			Expect(rec.finished).To(Equal([]bool{true}))
		})

		It("should finish when single ticks reach the horizon", func() {
			for range 5 {
				Expect(m.Tick()).To(Succeed())
			}

			Expect(rec.finished).To(Equal([]bool{true}))
		})

		It("should let the caller end the scenario early", func() {
			Expect(m.Run(2)).To(Succeed())

			m.Finish(false)
			Expect(m.Run(3)).To(Succeed())

			Expect(rec.finished).To(Equal([]bool{false}))
			Expect(m.Now()).To(Equal(uint64(5)))
		})
	})

	It("should report tick progress through hooks", func() {
		src := g.MustAddNode("Src", constant(x, 1), modeling.SingleRate)
		sink := g.MustAddNode("Sink", newRecorder(x), modeling.SingleRate)
		g.Connect(src, x, sink)

		m, err := g.Build(quiet)
		Expect(err).ToNot(HaveOccurred())

		var progress []Progress
		m.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosAfterTick {
				progress = append(progress, ctx.Detail.(Progress))
			}
		}))

		Expect(m.Run(2)).To(Succeed())

		Expect(progress).To(Equal([]Progress{
			{Tick: 1, Target: 2},
			{Tick: 2, Target: 2},
		}))
	})

	It("should wait while paused", func() {
		src := g.MustAddNode("Src", constant(x, 1), modeling.SingleRate)
		sink := g.MustAddNode("Sink", newRecorder(x), modeling.SingleRate)
		g.Connect(src, x, sink)

		m, err := g.Build(quiet)
		Expect(err).ToNot(HaveOccurred())

		m.Pause()
		Expect(m.IsPaused()).To(BeTrue())

		done := make(chan error)
		go func() {
			done <- m.Run(3)
		}()

		Consistently(m.Now, 50*time.Millisecond).Should(BeZero())

		m.Continue()

		Eventually(done).Should(Receive(BeNil()))
		Expect(m.Now()).To(Equal(uint64(3)))
	})
})
