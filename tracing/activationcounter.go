package tracing

import (
	"sync"

	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/payload"
)

// NodeCount is what happened to one node.
type NodeCount struct {
	Activations uint64
	Stalls      uint64
	Dropped     uint64
}

// Utilization is the share of ticks on which the node was not stalled.
func (c NodeCount) Utilization() float64 {
	total := c.Activations + c.Stalls
	if total == 0 {
		return 0
	}

	return float64(c.Activations) / float64(total)
}

// ActivationCounter counts the activations, stalls and dropped payloads of
// every node it traces.
type ActivationCounter struct {
	filter NodeFilter
	lock   sync.Mutex

	nodeNames []string
	counts    map[string]*NodeCount
}

// NewActivationCounter creates a new ActivationCounter. A nil filter keeps
// every node.
func NewActivationCounter(filter NodeFilter) *ActivationCounter {
	return &ActivationCounter{
		filter: filter,
		counts: make(map[string]*NodeCount),
	}
}

// NodeNames returns the names of the nodes seen, in the order they were
// first seen.
func (t *ActivationCounter) NodeNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, len(t.nodeNames))
	copy(names, t.nodeNames)

	return names
}

// Count returns what was recorded for a node.
func (t *ActivationCounter) Count(nodeName string) NodeCount {
	t.lock.Lock()
	defer t.lock.Unlock()

	c, ok := t.counts[nodeName]
	if !ok {
		return NodeCount{}
	}

	return *c
}

func (t *ActivationCounter) countOf(node *modeling.Node) *NodeCount {
	c, ok := t.counts[node.Name()]
	if !ok {
		c = &NodeCount{}
		t.counts[node.Name()] = c
		t.nodeNames = append(t.nodeNames, node.Name())
	}

	return c
}

// StartActivation counts an activation.
func (t *ActivationCounter) StartActivation(node *modeling.Node, _ uint64) {
	if !t.filter.keep(node) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.countOf(node).Activations++
}

// EndActivation counts the payloads dropped by the activation.
func (t *ActivationCounter) EndActivation(
	node *modeling.Node,
	_ uint64,
	dropped []*modeling.CapacityError,
) {
	if len(dropped) == 0 || !t.filter.keep(node) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.countOf(node).Dropped += uint64(len(dropped))
}

// Stall counts a stall.
func (t *ActivationCounter) Stall(node *modeling.Node, _ uint64) {
	if !t.filter.keep(node) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.countOf(node).Stalls++
}

// Push does nothing.
func (t *ActivationCounter) Push(*modeling.Edge, uint64, *payload.Payload) {}
