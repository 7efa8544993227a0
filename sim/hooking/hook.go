// Package hooking lets tracers, metrics and tests observe the dataflow
// engine without the engine knowing about them.
package hooking

import "sync"

// HookPos names a point in the engine where hooks are invoked. Positions are
// compared by pointer.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation: the object that fired it, the tick, the
// position, and what happened there.
type HookCtx struct {
	Domain Hookable
	Tick   uint64
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable is implemented by nodes, edges and models.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// Hook observes a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase implements Hookable for embedding. Nodes of the same level fire
// their hooks from different goroutines when the model runs in parallel.
type HookableBase struct {
	lock     sync.RWMutex
	hookList []Hook
}

// NumHooks counts the registered hooks.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hookList)
}

// Hooks returns a copy of the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	h.lock.RLock()
	defer h.lock.RUnlock()

	hooks := make([]Hook, len(h.hookList))
	copy(hooks, h.hookList)

	return hooks
}

// AcceptHook appends a hook. Registering the same hook value twice panics,
// except for HookFunc values, which cannot be compared.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.mustBeNew(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustBeNew(hook Hook) {
	if _, isFunc := hook.(HookFunc); isFunc {
		return
	}

	for _, registered := range h.hookList {
		if registered == hook {
			panic("hook registered twice")
		}
	}
}

// InvokeHook calls the hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}
