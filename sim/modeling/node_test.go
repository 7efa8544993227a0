package modeling

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/payload"
)

type defaultingClient struct {
	*MockClient
	tag *payload.Tag
}

func (c defaultingClient) DefaultInput(tag *payload.Tag) *payload.Payload {
	return payload.MustNew(tag, []float64{7})
}

var _ = Describe("Node", func() {
	var (
		mockCtrl *gomock.Controller
		reg      *payload.Registry
		in       *payload.Tag
		out      *payload.Tag
		upstream *Node
		client   *MockClient
		sink     *MockClient
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		reg = payload.NewRegistry()
		in = reg.MustDefine("In", 1)
		out = reg.MustDefine("Out", 1)

		up := NewMockClient(mockCtrl)
		up.EXPECT().Inputs().Return(nil)
		up.EXPECT().Outputs().Return([]*payload.Tag{in})
		upstream = NewNode("Up", up, SingleRate)

		client = NewMockClient(mockCtrl)
		client.EXPECT().Inputs().Return([]*payload.Tag{in}).AnyTimes()
		client.EXPECT().Outputs().Return([]*payload.Tag{out}).AnyTimes()

		sink = NewMockClient(mockCtrl)
		sink.EXPECT().Inputs().Return([]*payload.Tag{out}).AnyTimes()
		sink.EXPECT().Outputs().Return(nil).AnyTimes()
	})

	connect := func(src *Node, dst *Node, tag *payload.Tag, d Discipline) *Edge {
		o := src.OutputByTag(tag)
		i := dst.InputByTag(tag)
		e := NewEdge(o, i, d, false)
		o.Bind(e)
		Expect(i.Bind(e)).To(BeTrue())

		return e
	}

	feed := func(e *Edge, tick uint64, v float64) {
		Expect(e.Push(tick, payload.MustNew(in, []float64{v}))).To(Succeed())
	}

	It("should expose one port per tag", func() {
		n := NewNode("Node", client, SingleRate)

		Expect(n.Inputs()).To(HaveLen(1))
		Expect(n.Inputs()[0].Name()).To(Equal("Node.In"))
		Expect(n.OutputByTag(out).Index()).To(Equal(0))
		Expect(n.InputByTag(out)).To(BeNil())
		Expect(n.IsTerminal()).To(BeFalse())
	})

	It("should panic on an invalid name", func() {
		Expect(func() { NewNode("bad name", client, SingleRate) }).To(Panic())
	})

	It("should refuse a second edge on an input", func() {
		n := NewNode("Node", client, SingleRate)
		connect(upstream, n, in, Bounded)

		e := NewEdge(upstream.Outputs()[0], n.Inputs()[0], Bounded, false)
		Expect(n.Inputs()[0].Bind(e)).To(BeFalse())
	})

	It("should emit once per R gathers when down-sampling", func() {
		n := NewNode("Node", client, DownSample(4))
		e := connect(upstream, n, in, Bounded)
		s := NewNode("Sink", sink, SingleRate)
		downstream := connect(n, s, out, Unbounded)
		result := payload.MustNew(out, []float64{4})

		client.EXPECT().Read(gomock.Any()).Times(8)
		client.EXPECT().Update().Return(nil).Times(2)
		client.EXPECT().Write(out).Return(result, nil).Times(2)

		var emittedAt []uint64
		for tick := uint64(0); tick < 8; tick++ {
			feed(e, tick, 1)

			_, err := n.Activate(tick)
			Expect(err).ToNot(HaveOccurred())

			if downstream.Size() > 0 {
				emittedAt = append(emittedAt, tick)
				downstream.Drain(tick)
			}
		}

		Expect(emittedAt).To(Equal([]uint64{3, 7}))
		Expect(n.Emissions()).To(Equal(uint64(2)))
		Expect(n.Activations()).To(Equal(uint64(8)))
	})

	It("should hold the result for R ticks", func() {
		n := NewNode("Node", client, Hold(3))
		e := connect(upstream, n, in, Bounded)
		s := NewNode("Sink", sink, SingleRate)
		downstream := connect(n, s, out, Unbounded)
		result := payload.MustNew(out, []float64{1})

		client.EXPECT().Read(gomock.Any()).Times(1)
		client.EXPECT().Update().Return(nil).Times(1)
		client.EXPECT().Write(out).Return(result, nil).Times(1)

		feed(e, 0, 1)
		for tick := uint64(0); tick < 3; tick++ {
			_, err := n.Activate(tick)
			Expect(err).ToNot(HaveOccurred())
		}

		Expect(n.State()).To(Equal(Idle))
		Expect(downstream.Drain(2)).To(Equal(
			[]*payload.Payload{result, result, result}))
	})

	It("should report the state between activations", func() {
		n := NewNode("Node", client, DownSample(2))
		e := connect(upstream, n, in, Bounded)

		client.EXPECT().Read(gomock.Any()).AnyTimes()
		client.EXPECT().Update().Return(nil)
		client.EXPECT().Write(out).Return(nil, nil)

		Expect(n.State()).To(Equal(Idle))

		feed(e, 0, 1)
		_, _ = n.Activate(0)
		Expect(n.State()).To(Equal(Gathering))

		feed(e, 1, 1)
		_, _ = n.Activate(1)
		Expect(n.State()).To(Equal(Idle))
	})

	It("should not count a tick without arrivals as a gather", func() {
		n := NewNode("Node", client, DownSample(2))
		e := connect(upstream, n, in, Bounded)

		client.EXPECT().Read(gomock.Any()).Times(2)
		client.EXPECT().Update().Return(nil).Times(1)
		client.EXPECT().Write(out).Return(nil, nil).Times(1)

		feed(e, 0, 1)
		_, _ = n.Activate(0)
		_, _ = n.Activate(1)
		_, _ = n.Activate(2)
		feed(e, 3, 1)
		_, _ = n.Activate(3)

		Expect(n.Activations()).To(Equal(uint64(4)))
		Expect(n.Emissions()).To(BeZero())
	})

	It("should not count an emission when nothing is written", func() {
		n := NewNode("Node", client, Hold(2))
		e := connect(upstream, n, in, Bounded)
		s := NewNode("Sink", sink, SingleRate)
		downstream := connect(n, s, out, Unbounded)
		result := payload.MustNew(out, []float64{3})

		client.EXPECT().Read(gomock.Any()).Times(2)
		client.EXPECT().Update().Return(nil).Times(2)
		gomock.InOrder(
			client.EXPECT().Write(out).Return(nil, nil),
			client.EXPECT().Write(out).Return(result, nil),
		)

		feed(e, 0, 1)
		_, err := n.Activate(0)
		Expect(err).ToNot(HaveOccurred())

		Expect(n.Emissions()).To(BeZero())
		Expect(n.State()).To(Equal(Idle))
		Expect(downstream.Size()).To(BeZero())

		feed(e, 1, 1)
		for tick := uint64(1); tick < 3; tick++ {
			_, err := n.Activate(tick)
			Expect(err).ToNot(HaveOccurred())
		}

		Expect(n.Emissions()).To(Equal(uint64(2)))
		Expect(downstream.Drain(2)).To(Equal([]*payload.Payload{result, result}))
	})

	It("should stall while a bounded output edge is full", func() {
		n := NewNode("Node", client, SingleRate)
		e := connect(upstream, n, in, Bounded)
		s := NewNode("Sink", sink, SingleRate)
		connect(n, s, out, Bounded)

		client.EXPECT().Read(gomock.Any()).Times(1)
		client.EXPECT().Update().Return(nil).Times(1)
		client.EXPECT().Write(out).
			Return(payload.MustNew(out, []float64{1}), nil).Times(1)

		stalled := 0
		n.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosNodeStall {
				stalled++
			}
		}))

		feed(e, 0, 1)
		_, err := n.Activate(0)
		Expect(err).ToNot(HaveOccurred())

		feed(e, 1, 2)
		_, err = n.Activate(1)
		Expect(err).ToNot(HaveOccurred())

		Expect(n.Blocked()).To(BeTrue())
		Expect(n.Stalls()).To(Equal(uint64(1)))
		Expect(stalled).To(Equal(1))
		Expect(e.Size()).To(Equal(1))
	})

	It("should return the dropped payloads of best-effort edges", func() {
		n := NewNode("Node", client, SingleRate)
		e := connect(upstream, n, in, Bounded)
		s := NewNode("Sink", sink, SingleRate)
		connect(n, s, out, BestEffort)

		client.EXPECT().Read(gomock.Any()).Times(2)
		client.EXPECT().Update().Return(nil).Times(2)
		client.EXPECT().Write(out).
			Return(payload.MustNew(out, []float64{1}), nil).Times(2)

		feed(e, 0, 1)
		dropped, err := n.Activate(0)
		Expect(err).ToNot(HaveOccurred())
		Expect(dropped).To(BeEmpty())

		feed(e, 1, 1)
		dropped, err = n.Activate(1)
		Expect(err).ToNot(HaveOccurred())
		Expect(dropped).To(HaveLen(1))
		Expect(dropped[0].Edge).To(Equal("Node.Out->Sink"))
	})

	It("should fail when the client fails", func() {
		n := NewNode("Node", client, SingleRate)
		e := connect(upstream, n, in, Bounded)
		boom := errors.New("boom")

		client.EXPECT().Read(gomock.Any())
		client.EXPECT().Update().Return(boom)

		feed(e, 0, 1)
		_, err := n.Activate(0)

		Expect(err).To(MatchError(boom))
	})

	It("should fail when the client writes another tag", func() {
		n := NewNode("Node", client, SingleRate)
		e := connect(upstream, n, in, Bounded)

		client.EXPECT().Read(gomock.Any())
		client.EXPECT().Update().Return(nil)
		client.EXPECT().Write(out).Return(payload.Zero(in), nil)

		feed(e, 0, 1)
		_, err := n.Activate(0)

		Expect(err).To(MatchError(ErrWrongTag))
	})

	It("should run every tick without inputs", func() {
		source := NewMockClient(mockCtrl)
		source.EXPECT().Inputs().Return(nil)
		source.EXPECT().Outputs().Return(nil)
		source.EXPECT().Update().Return(nil).Times(3)

		n := NewNode("Source", source, SingleRate)
		for tick := uint64(0); tick < 3; tick++ {
			_, err := n.Activate(tick)
			Expect(err).ToNot(HaveOccurred())
		}
	})

	It("should deliver defaults of unconnected inputs on reset", func() {
		c := defaultingClient{MockClient: client, tag: in}
		n := NewNode("Node", c, SingleRate)

		client.EXPECT().Read(gomock.Any()).Do(func(p *payload.Payload) {
			Expect(p.Values()).To(Equal([]float64{7}))
		})

		n.Reset()
	})
})
