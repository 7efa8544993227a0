// Package queueing provides the FIFO buffers that hold in-flight payloads on
// the edges of a dataflow graph.
package queueing

import (
	"log"

	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/naming"
	"github.com/dosflow/dosflow/sim/payload"
)

// HookPosBufPush marks when a payload is pushed into the buffer.
var HookPosBufPush = &hooking.HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when a payload is popped from the buffer.
var HookPosBufPop = &hooking.HookPos{Name: "Buffer Pop"}

// HookPosBufOverwrite marks when the newest payload of a full buffer is
// replaced.
var HookPosBufOverwrite = &hooking.HookPos{Name: "Buffer Overwrite"}

// Unlimited is the capacity of a buffer that never fills up.
const Unlimited = -1

// A Buffer is a FIFO queue of payloads.
type Buffer interface {
	naming.Named
	hooking.Hookable

	CanPush() bool
	Push(p *payload.Payload)
	Overwrite(p *payload.Payload) (replaced *payload.Payload)
	Pop() *payload.Payload
	PopAll() []*payload.Payload
	Peek() *payload.Payload
	Capacity() int
	Size() int
	Clear()
}

// BufferBuilder is a builder for Buffer.
type BufferBuilder struct {
	capacity int
}

// MakeBufferBuilder creates a BufferBuilder for single-slot buffers.
func MakeBufferBuilder() BufferBuilder {
	return BufferBuilder{capacity: 1}
}

// WithCapacity defines the capacity of the buffer. Unlimited removes the
// bound.
func (b BufferBuilder) WithCapacity(capacity int) BufferBuilder {
	b.capacity = capacity
	return b
}

// Build builds a new Buffer.
func (b BufferBuilder) Build(name string) Buffer {
	if b.capacity == 0 || b.capacity < Unlimited {
		log.Panicf("buffer %s: invalid capacity %d", name, b.capacity)
	}

	return &bufferImpl{
		NamedBase: naming.MakeNamedBase(name),
		capacity:  b.capacity,
	}
}

type bufferImpl struct {
	naming.NamedBase
	hooking.HookableBase

	capacity int
	elements []*payload.Payload
}

func (b *bufferImpl) CanPush() bool {
	if b.capacity == Unlimited {
		return true
	}

	return len(b.elements) < b.capacity
}

func (b *bufferImpl) Push(p *payload.Payload) {
	if !b.CanPush() {
		log.Panicf("buffer %s overflow", b.Name())
	}

	b.elements = append(b.elements, p)

	b.invoke(HookPosBufPush, p, nil)
}

// Overwrite pushes the payload, replacing the newest element when the buffer
// is full. The replaced payload is returned.
func (b *bufferImpl) Overwrite(p *payload.Payload) *payload.Payload {
	if b.CanPush() {
		b.Push(p)
		return nil
	}

	last := len(b.elements) - 1
	replaced := b.elements[last]
	b.elements[last] = p

	b.invoke(HookPosBufOverwrite, p, replaced)

	return replaced
}

func (b *bufferImpl) Pop() *payload.Payload {
	if len(b.elements) == 0 {
		return nil
	}

	p := b.elements[0]
	b.elements[0] = nil
	b.elements = b.elements[1:]

	b.invoke(HookPosBufPop, p, nil)

	return p
}

// PopAll removes every payload, oldest first.
func (b *bufferImpl) PopAll() []*payload.Payload {
	if len(b.elements) == 0 {
		return nil
	}

	all := b.elements
	b.elements = nil

	for _, p := range all {
		b.invoke(HookPosBufPop, p, nil)
	}

	return all
}

func (b *bufferImpl) Peek() *payload.Payload {
	if len(b.elements) == 0 {
		return nil
	}

	return b.elements[0]
}

func (b *bufferImpl) Capacity() int {
	return b.capacity
}

func (b *bufferImpl) Size() int {
	return len(b.elements)
}

func (b *bufferImpl) Clear() {
	b.elements = nil
}

func (b *bufferImpl) invoke(pos *hooking.HookPos, item, detail any) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
