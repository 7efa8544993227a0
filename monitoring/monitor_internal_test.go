package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/dosflow/dosflow/clients"
	"github.com/dosflow/dosflow/sim/graph"
	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/payload"
	"github.com/dosflow/dosflow/tracing"
)

var (
	testTags = payload.NewRegistry()
	tagX     = testTags.MustDefine("X", 1)
	tagY     = testTags.MustDefine("Y", 1)
)

func sampleModel() *graph.Model {
	g := graph.New("Sample")

	sum, err := clients.NewSum(tagX, tagY)
	Expect(err).NotTo(HaveOccurred())

	sampler, err := clients.NewSampler(tagY, tagY)
	Expect(err).NotTo(HaveOccurred())

	src := g.MustAddNode("Source",
		clients.NewSignals(tagX, 0).All(clients.Constant(1)), modeling.SingleRate)
	acc := g.MustAddNode("Sum", sum, modeling.DownSample(2))
	out := g.MustAddNode("Sampler", sampler, modeling.SingleRate)

	g.Output(src, tagX).Into(acc)
	g.Output(acc, tagY).Into(out)

	m, err := g.Build(graph.WithLogger(zerolog.Nop()))
	Expect(err).NotTo(HaveOccurred())

	return m
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func decode(rec *httptest.ResponseRecorder, v any) {
	Expect(rec.Code).To(Equal(http.StatusOK))
	Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
}

var _ = Describe("Monitor", func() {
	var (
		model   *graph.Model
		m       *Monitor
		handler http.Handler
	)

	BeforeEach(func() {
		model = sampleModel()
		m = NewMonitor()
		m.RegisterModel(model)
		handler = m.Router()
	})

	It("should replace reserved ports with a random one", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should report the current tick", func() {
		Expect(model.Run(3)).To(Succeed())

		var rsp nowRsp
		decode(get(handler, "/api/now"), &rsp)

		Expect(rsp.Now).To(Equal(uint64(3)))
		Expect(rsp.Target).To(Equal(uint64(3)))
		Expect(rsp.Paused).To(BeFalse())
	})

	It("should pause and continue the model", func() {
		Expect(get(handler, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(model.IsPaused()).To(BeTrue())

		Expect(get(handler, "/api/continue").Code).To(Equal(http.StatusOK))
		Expect(model.IsPaused()).To(BeFalse())
	})

	It("should list the nodes", func() {
		Expect(model.Run(4)).To(Succeed())

		var rsp []nodeRsp
		decode(get(handler, "/api/nodes"), &rsp)

		Expect(rsp).To(HaveLen(3))
		Expect(rsp[1].Name).To(Equal("Sum"))
		Expect(rsp[1].Rate).To(Equal(modeling.DownSample(2).String()))
		Expect(rsp[1].Activations).To(Equal(uint64(4)))
		Expect(rsp[1].Emissions).To(Equal(uint64(2)))
	})

	It("should serialize the client of a node", func() {
		rec := get(handler, "/api/node/Sum")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).NotTo(BeEmpty())
	})

	It("should answer 404 for unknown nodes", func() {
		Expect(get(handler, "/api/node/Nothing").Code).To(Equal(http.StatusNotFound))

		req := url.PathEscape(`{"node_name":"Nothing","field_name":"in"}`)
		Expect(get(handler, "/api/field/"+req).Code).To(Equal(http.StatusNotFound))
	})

	It("should reject malformed field requests", func() {
		Expect(get(handler, "/api/field/"+url.PathEscape("{")).Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should list the edges", func() {
		Expect(model.Run(1)).To(Succeed())

		var rsp []edgeRsp
		decode(get(handler, "/api/edges?sort=level"), &rsp)

		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0].Cap).To(Equal(1))
		Expect(rsp[0].Discipline).To(Equal("bounded"))
	})

	It("should page the edges", func() {
		var rsp []edgeRsp
		decode(get(handler, "/api/edges?limit=1&offset=1"), &rsp)
		Expect(rsp).To(HaveLen(1))

		decode(get(handler, "/api/edges?offset=5"), &rsp)
		Expect(rsp).To(BeEmpty())
	})

	It("should reject unknown sort methods", func() {
		Expect(get(handler, "/api/edges?sort=size").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get(handler, "/api/edges?limit=-1").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should follow a run with a progress bar", func() {
		bar := m.TrackRun("Run", 5)
		Expect(model.Run(5)).To(Succeed())

		var rsp []ProgressBarSnapshot
		decode(get(handler, "/api/progress"), &rsp)

		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Finished).To(Equal(uint64(5)))
		Expect(rsp[0].Total).To(Equal(uint64(5)))

		m.CompleteProgressBar(bar)
		decode(get(handler, "/api/progress"), &rsp)
		Expect(rsp).To(BeEmpty())
	})

	It("should report the resources of the process", func() {
		var rsp resourceRsp
		decode(get(handler, "/api/resource"), &rsp)

		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the metrics", func() {
		metrics := tracing.NewMetrics("Sample")
		metrics.Observe(model)
		m.RegisterMetrics(metrics)
		handler = m.Router()

		Expect(model.Run(2)).To(Succeed())

		rec := get(handler, "/metrics")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("dosflow_tick"))
	})

	It("should serve the page", func() {
		rec := get(handler, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("<!DOCTYPE html>"))
	})

	It("should start and stop a server", func() {
		u, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(m.URL()).To(Equal(u))

		rsp, err := http.Get(u + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(m.Shutdown(context.Background())).To(Succeed())
	})
})
