package tracing

import (
	"fmt"
	"reflect"

	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/payload"
)

// A Model is what a tracer can be attached to as a whole.
type Model interface {
	Nodes() []*modeling.Node
	Edges() []*modeling.Edge
}

// CollectTrace lets the tracer collect the trace of one node or edge.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	hooks := domain.Hooks()
	for _, hook := range hooks {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	h := traceHook{t: tracer}
	domain.AcceptHook(&h)
}

// CollectModelTrace attaches the tracer to every node and every edge of a
// model.
func CollectModelTrace(m Model, tracer Tracer) {
	for _, n := range m.Nodes() {
		CollectTrace(n, tracer)
	}

	for _, e := range m.Edges() {
		CollectTrace(e, tracer)
	}
}

// A traceHook turns hook invocations into tracer calls.
type traceHook struct {
	t Tracer
}

// Func calls the tracer interfaces when the hook is triggered.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case modeling.HookPosBeforeActivation:
		h.t.StartActivation(ctx.Item.(*modeling.Node), ctx.Tick)
	case modeling.HookPosAfterActivation:
		dropped, _ := ctx.Detail.([]*modeling.CapacityError)
		h.t.EndActivation(ctx.Item.(*modeling.Node), ctx.Tick, dropped)
	case modeling.HookPosNodeStall:
		h.t.Stall(ctx.Item.(*modeling.Node), ctx.Tick)
	case modeling.HookPosEdgePush:
		h.t.Push(ctx.Domain.(*modeling.Edge), ctx.Tick, ctx.Item.(*payload.Payload))
	}
}
