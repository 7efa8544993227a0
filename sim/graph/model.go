package graph

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/modeling"
)

// HookPosBeforeTick marks the start of a tick.
var HookPosBeforeTick = &hooking.HookPos{Name: "Before Tick"}

// HookPosAfterTick marks the end of a tick.
var HookPosAfterTick = &hooking.HookPos{Name: "After Tick"}

// HookPosRunAbort marks a run stopped by a transform error.
var HookPosRunAbort = &hooking.HookPos{Name: "Run Abort"}

// Progress is the detail of tick hooks.
type Progress struct {
	Tick   uint64
	Target uint64
}

// ModelOption configures a model at build time.
type ModelOption func(*Model)

// WithParallelism runs the nodes of one topological level on up to n
// goroutines. Payload sequences are the same as in a sequential run.
func WithParallelism(n int) ModelOption {
	return func(m *Model) {
		m.parallelism = n
	}
}

// WithLogger sets the logger of the model.
func WithLogger(l zerolog.Logger) ModelOption {
	return func(m *Model) {
		m.logger = l
	}
}

// WithHorizon sets the tick the scenario ends at. Finishers are then told
// about a complete run once, when the model reaches the horizon, instead of
// at the end of every Run.
func WithHorizon(ticks uint64) ModelOption {
	return func(m *Model) {
		m.horizon = ticks
	}
}

// WithCapacityHandler registers a function that sees every payload dropped
// by a best-effort edge.
func WithCapacityHandler(f func(*CapacityError)) ModelOption {
	return func(m *Model) {
		m.onCapacity = f
	}
}

// A Model is a validated graph that can be run.
type Model struct {
	hooking.HookableBase

	name   string
	nodes  []*modeling.Node
	edges  []*modeling.Edge
	order  []*modeling.Node
	levels [][]*modeling.Node

	parallelism int
	horizon     uint64
	logger      zerolog.Logger
	onCapacity  func(*CapacityError)

	runLock        sync.Mutex
	pauseLock      sync.Mutex
	paused         atomic.Bool
	tick           atomic.Uint64
	target         atomic.Uint64
	started        bool
	finished       bool
	aborted        atomic.Bool
	capacityErrors atomic.Uint64
}

func newModel(
	g *Graph,
	order []*modeling.Node,
	levels [][]*modeling.Node,
	opts ...ModelOption,
) *Model {
	m := &Model{
		name:   g.name,
		nodes:  g.nodes,
		edges:  g.edges,
		order:  order,
		levels: levels,
		logger: logging.Component("graph").With().Str("model", g.name).Logger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Name returns the name of the model.
func (m *Model) Name() string {
	return m.name
}

// Nodes returns the nodes in insertion order.
func (m *Model) Nodes() []*modeling.Node {
	return m.nodes
}

// Node finds a node by name.
func (m *Model) Node(name string) *modeling.Node {
	for _, n := range m.nodes {
		if n.Name() == name {
			return n
		}
	}

	return nil
}

// Edges returns the edges in connection order.
func (m *Model) Edges() []*modeling.Edge {
	return m.edges
}

// Order returns the activation order.
func (m *Model) Order() []*modeling.Node {
	return m.order
}

// Levels returns the nodes grouped by topological level.
func (m *Model) Levels() [][]*modeling.Node {
	return m.levels
}

// Now returns the number of ticks completed.
func (m *Model) Now() uint64 {
	return m.tick.Load()
}

// Target returns the tick the current run stops at.
func (m *Model) Target() uint64 {
	return m.target.Load()
}

// Aborted tells if a transform error has stopped the model.
func (m *Model) Aborted() bool {
	return m.aborted.Load()
}

// CapacityErrors returns how many payloads best-effort edges dropped.
func (m *Model) CapacityErrors() uint64 {
	return m.capacityErrors.Load()
}

// Pause blocks the run before the next tick until Continue is called.
func (m *Model) Pause() {
	if m.paused.CompareAndSwap(false, true) {
		m.pauseLock.Lock()
	}
}

// Continue resumes a paused run.
func (m *Model) Continue() {
	if m.paused.CompareAndSwap(true, false) {
		m.pauseLock.Unlock()
	}
}

func (m *Model) waitIfPaused() {
	if !m.paused.Load() {
		return
	}

	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()
}

// IsPaused tells if the model is paused.
func (m *Model) IsPaused() bool {
	return m.paused.Load()
}

// Run advances the model by n ticks. Running zero ticks does nothing. The
// first transform error stops the run, marks the model aborted and is
// returned as a *TransformError. Finishers are told the outcome at the end
// of every run, or only when the horizon is reached if the model has one.
func (m *Model) Run(n uint64) error {
	m.runLock.Lock()
	defer m.runLock.Unlock()

	if m.aborted.Load() {
		return ErrAborted
	}

	if n == 0 {
		return nil
	}

	start := m.tick.Load()
	m.target.Store(start + n)

	m.logger.Info().
		Uint64("from", start).
		Uint64("ticks", n).
		Int("nodes", len(m.nodes)).
		Int("edges", len(m.edges)).
		Msg("run started")

	for i := uint64(0); i < n; i++ {
		if err := m.step(); err != nil {
			m.abort(err)
			return err
		}
	}

	if m.horizon == 0 || m.tick.Load() >= m.horizon {
		m.finish(true)
	}

	m.logger.Info().
		Uint64("now", m.tick.Load()).
		Uint64("dropped", m.capacityErrors.Load()).
		Msg("run finished")

	return nil
}

// Tick advances the model by one tick.
func (m *Model) Tick() error {
	m.runLock.Lock()
	defer m.runLock.Unlock()

	if m.aborted.Load() {
		return ErrAborted
	}

	if m.target.Load() <= m.tick.Load() {
		m.target.Store(m.tick.Load() + 1)
	}

	if err := m.step(); err != nil {
		m.abort(err)
		return err
	}

	if m.horizon > 0 && m.tick.Load() >= m.horizon {
		m.finish(true)
	}

	return nil
}

func (m *Model) start() {
	for _, e := range m.edges {
		e.Preload()
	}

	for _, n := range m.nodes {
		n.Reset()
	}

	m.started = true
}

func (m *Model) step() error {
	m.waitIfPaused()

	if !m.started {
		m.start()
	}

	tick := m.tick.Load()
	progress := Progress{Tick: tick, Target: m.target.Load()}
	m.invoke(tick, HookPosBeforeTick, progress)

	var err error
	if m.parallelism > 1 {
		err = m.stepParallel(tick)
	} else {
		err = m.stepSequential(tick)
	}

	if err != nil {
		return err
	}

	for _, e := range m.edges {
		e.Commit()
	}

	m.tick.Add(1)
	progress.Tick = tick + 1
	m.invoke(tick, HookPosAfterTick, progress)

	return nil
}

func (m *Model) stepSequential(tick uint64) error {
	for _, n := range m.order {
		dropped, err := n.Activate(tick)
		m.reportDropped(dropped)

		if err != nil {
			return &TransformError{Node: n.Name(), Tick: tick, Err: err}
		}
	}

	return nil
}

type activation struct {
	dropped []*CapacityError
	err     error
}

func (m *Model) stepParallel(tick uint64) error {
	for _, level := range m.levels {
		results := make([]activation, len(level))

		var g errgroup.Group
		g.SetLimit(m.parallelism)

		for i, n := range level {
			g.Go(func() error {
				dropped, err := n.Activate(tick)
				results[i] = activation{dropped: dropped, err: err}

				return nil
			})
		}

		_ = g.Wait()

		for i, r := range results {
			m.reportDropped(r.dropped)

			if r.err != nil {
				return &TransformError{
					Node: level[i].Name(),
					Tick: tick,
					Err:  r.err,
				}
			}
		}
	}

	return nil
}

func (m *Model) reportDropped(dropped []*CapacityError) {
	for _, d := range dropped {
		m.capacityErrors.Add(1)

		m.logger.Warn().
			Str("edge", d.Edge).
			Uint64("tick", d.Tick).
			Msg("best-effort edge dropped a payload")

		if m.onCapacity != nil {
			m.onCapacity(d)
		}
	}
}

func (m *Model) abort(err error) {
	m.aborted.Store(true)

	m.logger.Error().
		Err(err).
		Uint64("tick", m.tick.Load()).
		Msg("run aborted")

	m.invoke(m.tick.Load(), HookPosRunAbort, err)
	m.finish(false)
}

// Finish ends the scenario before its horizon, telling finishers whether
// the record is complete. A model with a horizon tells its finishers at
// most once.
func (m *Model) Finish(complete bool) {
	m.runLock.Lock()
	defer m.runLock.Unlock()

	m.finish(complete)
}

// Finished tells whether the finishers were told the outcome.
func (m *Model) Finished() bool {
	m.runLock.Lock()
	defer m.runLock.Unlock()

	return m.finished
}

func (m *Model) finish(complete bool) {
	if m.horizon > 0 && m.finished {
		return
	}

	m.finished = true

	for _, n := range m.nodes {
		if f, ok := n.Client().(modeling.Finisher); ok {
			f.Finish(complete)
		}
	}
}

func (m *Model) invoke(tick uint64, pos *hooking.HookPos, detail any) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Tick:   tick,
		Pos:    pos,
		Item:   m,
		Detail: detail,
	})
}
