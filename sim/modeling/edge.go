package modeling

import (
	"errors"
	"fmt"

	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/payload"
	"github.com/dosflow/dosflow/sim/queueing"
)

// HookPosEdgePush marks when a payload is pushed onto an edge.
var HookPosEdgePush = &hooking.HookPos{Name: "Edge Push"}

// HookPosEdgeDrain marks when a payload is taken off an edge by its consumer.
var HookPosEdgeDrain = &hooking.HookPos{Name: "Edge Drain"}

// HookPosEdgeOverwrite marks when a best-effort edge drops a payload.
var HookPosEdgeOverwrite = &hooking.HookPos{Name: "Edge Overwrite"}

// ErrEdgeFull is returned when pushing onto a full bounded edge.
var ErrEdgeFull = errors.New("edge full")

// Discipline is how an edge behaves when its consumer falls behind.
type Discipline int

// Edge disciplines.
const (
	// Bounded holds one payload and blocks the producer while it is full.
	Bounded Discipline = iota
	// Unbounded never blocks.
	Unbounded
	// BestEffort holds one payload and overwrites it when full.
	BestEffort
)

func (d Discipline) String() string {
	switch d {
	case Bounded:
		return "bounded"
	case Unbounded:
		return "unbounded"
	case BestEffort:
		return "best-effort"
	default:
		return fmt.Sprintf("Discipline(%d)", int(d))
	}
}

// A CapacityError reports a payload dropped by a best-effort edge. It is not
// fatal.
type CapacityError struct {
	Edge    string
	Tick    uint64
	Dropped *payload.Payload
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("edge %s dropped a payload at tick %d", e.Edge, e.Tick)
}

// An Edge carries payloads from one output port to one input port.
//
// A bootstrap edge starts the run with a zero payload and delivers every
// pushed payload one tick late: pushes are staged and only become visible to
// the consumer after Commit.
type Edge struct {
	hooking.HookableBase

	name       string
	src        *OutputPort
	dst        *InputPort
	discipline Discipline
	bootstrap  bool

	buf    queueing.Buffer
	staged []*payload.Payload

	pushes     uint64
	drains     uint64
	overwrites uint64
}

// NewEdge creates an edge between two ports. It does not bind the ports.
func NewEdge(
	src *OutputPort,
	dst *InputPort,
	discipline Discipline,
	bootstrap bool,
) *Edge {
	name := fmt.Sprintf("%s.%s->%s",
		src.Node().Name(), src.Tag().Name(), dst.Node().Name())

	capacity := 1
	if discipline == Unbounded {
		capacity = queueing.Unlimited
	}

	return &Edge{
		name:       name,
		src:        src,
		dst:        dst,
		discipline: discipline,
		bootstrap:  bootstrap,
		buf: queueing.MakeBufferBuilder().
			WithCapacity(capacity).
			Build(name),
	}
}

// Name returns "<src node>.<tag>-><dst node>".
func (e *Edge) Name() string {
	return e.name
}

// Src returns the producing port.
func (e *Edge) Src() *OutputPort {
	return e.src
}

// Dst returns the consuming port.
func (e *Edge) Dst() *InputPort {
	return e.dst
}

// Tag returns the tag of the payloads on the edge.
func (e *Edge) Tag() *payload.Tag {
	return e.src.Tag()
}

// Discipline returns the discipline of the edge.
func (e *Edge) Discipline() Discipline {
	return e.discipline
}

// IsBootstrap tells if the edge delays delivery by one tick.
func (e *Edge) IsBootstrap() bool {
	return e.bootstrap
}

// CanPush tells if a push would succeed without blocking or dropping.
func (e *Edge) CanPush() bool {
	switch e.discipline {
	case Unbounded:
		return true
	default:
		if e.bootstrap {
			return len(e.staged) == 0
		}

		return e.buf.CanPush()
	}
}

// Push puts a payload onto the edge. It returns ErrEdgeFull when a bounded
// edge is full and a *CapacityError when a best-effort edge drops its
// previous payload.
func (e *Edge) Push(tick uint64, p *payload.Payload) error {
	if p.Tag() != e.Tag() {
		return fmt.Errorf("edge %s carries %s, got %s",
			e.name, e.Tag(), p.Tag())
	}

	if e.bootstrap {
		return e.stage(tick, p)
	}

	switch e.discipline {
	case BestEffort:
		replaced := e.buf.Overwrite(p)
		e.pushed(tick, p)

		if replaced != nil {
			return e.dropped(tick, replaced)
		}
	default:
		if !e.buf.CanPush() {
			return fmt.Errorf("%w: %s", ErrEdgeFull, e.name)
		}

		e.buf.Push(p)
		e.pushed(tick, p)
	}

	return nil
}

func (e *Edge) stage(tick uint64, p *payload.Payload) error {
	if !e.CanPush() {
		if e.discipline != BestEffort {
			return fmt.Errorf("%w: %s", ErrEdgeFull, e.name)
		}

		replaced := e.staged[0]
		e.staged[0] = p
		e.pushed(tick, p)

		return e.dropped(tick, replaced)
	}

	e.staged = append(e.staged, p)
	e.pushed(tick, p)

	return nil
}

func (e *Edge) pushed(tick uint64, p *payload.Payload) {
	e.pushes++
	e.invoke(tick, HookPosEdgePush, p, nil)
}

func (e *Edge) dropped(tick uint64, replaced *payload.Payload) error {
	e.overwrites++
	err := &CapacityError{Edge: e.name, Tick: tick, Dropped: replaced}
	e.invoke(tick, HookPosEdgeOverwrite, replaced, err)

	return err
}

// Drain removes every visible payload, oldest first.
func (e *Edge) Drain(tick uint64) []*payload.Payload {
	all := e.buf.PopAll()

	for _, p := range all {
		e.drains++
		e.invoke(tick, HookPosEdgeDrain, p, nil)
	}

	return all
}

// Preload makes a zero payload visible on a bootstrap edge. It does nothing
// on other edges.
func (e *Edge) Preload() {
	if !e.bootstrap {
		return
	}

	e.buf.Clear()
	e.staged = nil
	e.buf.Push(payload.Zero(e.Tag()))
}

// Commit makes the payloads staged on a bootstrap edge visible. It is called
// at the end of every tick.
func (e *Edge) Commit() {
	if len(e.staged) == 0 {
		return
	}

	for _, p := range e.staged {
		if e.discipline == BestEffort {
			e.buf.Overwrite(p)
			continue
		}

		e.buf.Push(p)
	}

	e.staged = nil
}

// Size returns the number of payloads visible to the consumer.
func (e *Edge) Size() int {
	return e.buf.Size()
}

// Capacity returns how many payloads the edge holds, or queueing.Unlimited.
func (e *Edge) Capacity() int {
	return e.buf.Capacity()
}

// Pending returns the number of staged payloads.
func (e *Edge) Pending() int {
	return len(e.staged)
}

// Pushes returns how many payloads were pushed.
func (e *Edge) Pushes() uint64 {
	return e.pushes
}

// Drains returns how many payloads the consumer took.
func (e *Edge) Drains() uint64 {
	return e.drains
}

// Overwrites returns how many payloads a best-effort edge dropped.
func (e *Edge) Overwrites() uint64 {
	return e.overwrites
}

func (e *Edge) invoke(tick uint64, pos *hooking.HookPos, item, detail any) {
	if e.NumHooks() == 0 {
		return
	}

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Tick:   tick,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
