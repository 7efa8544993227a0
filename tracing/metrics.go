package tracing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dosflow/dosflow/sim/graph"
	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/payload"
)

// Metrics exports what the traced model does as Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	Activations *prometheus.CounterVec
	Stalls      *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Pushes      *prometheus.CounterVec
	Tick        prometheus.Gauge
	Target      prometheus.Gauge
	Aborts      prometheus.Counter
}

// NewMetrics registers the metrics of a model on a new registry.
func NewMetrics(model string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	labels := prometheus.Labels{"model": model}
	factory := promauto.With(m.registry)

	m.Activations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "dosflow_node_activations_total",
			Help:        "Number of node activations",
			ConstLabels: labels,
		},
		[]string{"node"},
	)

	m.Stalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "dosflow_node_stalls_total",
			Help:        "Number of ticks a node waited on a full edge",
			ConstLabels: labels,
		},
		[]string{"node"},
	)

	m.Dropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "dosflow_node_dropped_total",
			Help:        "Number of payloads a node lost on best-effort edges",
			ConstLabels: labels,
		},
		[]string{"node"},
	)

	m.Pushes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "dosflow_edge_pushes_total",
			Help:        "Number of payloads pushed onto an edge",
			ConstLabels: labels,
		},
		[]string{"edge"},
	)

	m.Tick = factory.NewGauge(prometheus.GaugeOpts{
		Name:        "dosflow_tick",
		Help:        "Number of ticks run",
		ConstLabels: labels,
	})

	m.Target = factory.NewGauge(prometheus.GaugeOpts{
		Name:        "dosflow_target_tick",
		Help:        "Tick the current run stops at",
		ConstLabels: labels,
	})

	m.Aborts = factory.NewCounter(prometheus.CounterOpts{
		Name:        "dosflow_run_aborts_total",
		Help:        "Number of runs stopped by an error",
		ConstLabels: labels,
	})

	return m
}

// Registry returns the registry holding the metrics, for serving.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Func follows the tick hooks of a model.
func (m *Metrics) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case graph.HookPosAfterTick:
		p := ctx.Detail.(graph.Progress)
		m.Tick.Set(float64(p.Tick))
		m.Target.Set(float64(p.Target))
	case graph.HookPosRunAbort:
		m.Aborts.Inc()
	}
}

// StartActivation counts an activation.
func (m *Metrics) StartActivation(node *modeling.Node, _ uint64) {
	m.Activations.WithLabelValues(node.Name()).Inc()
}

// EndActivation counts the dropped payloads.
func (m *Metrics) EndActivation(
	node *modeling.Node,
	_ uint64,
	dropped []*modeling.CapacityError,
) {
	if len(dropped) > 0 {
		m.Dropped.WithLabelValues(node.Name()).Add(float64(len(dropped)))
	}
}

// Stall counts a stall.
func (m *Metrics) Stall(node *modeling.Node, _ uint64) {
	m.Stalls.WithLabelValues(node.Name()).Inc()
}

// Push counts a push.
func (m *Metrics) Push(edge *modeling.Edge, _ uint64, _ *payload.Payload) {
	m.Pushes.WithLabelValues(edge.Name()).Inc()
}

// Observe attaches the metrics to a model.
func (m *Metrics) Observe(model *graph.Model) {
	model.AcceptHook(m)
	CollectModelTrace(model, m)
}
