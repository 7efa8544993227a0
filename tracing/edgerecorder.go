package tracing

import (
	"encoding/binary"
	"math"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/dosflow/dosflow/datarecording"
	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/payload"
)

// EdgePushTable is the table the edge recorder writes into.
const EdgePushTable = "edge_pushes"

type edgePushEntry struct {
	Edge   string
	Tick   uint64
	Len    int
	Sum    float64
	Digest string
}

type edgeTrace struct {
	pushes uint64
	digest *xxhash.Digest
}

// EdgeRecorder keeps, for every edge, the number of payloads pushed and a
// digest of the sequence of pushes. Two runs that move the same payloads on
// the same ticks have the same digests. With a backend, every push is also
// recorded as a row.
type EdgeRecorder struct {
	lock    sync.Mutex
	backend datarecording.DataRecorder

	edgeNames []string
	traces    map[string]*edgeTrace
	scratch   [8]byte
}

// NewEdgeRecorder creates an EdgeRecorder. The backend may be nil.
func NewEdgeRecorder(backend datarecording.DataRecorder) *EdgeRecorder {
	r := &EdgeRecorder{
		backend: backend,
		traces:  make(map[string]*edgeTrace),
	}

	if backend != nil {
		backend.CreateTable(EdgePushTable, edgePushEntry{})
	}

	return r
}

// EdgeNames returns the edges that carried at least one payload, in the
// order of their first push.
func (r *EdgeRecorder) EdgeNames() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	names := make([]string, len(r.edgeNames))
	copy(names, r.edgeNames)

	return names
}

// Pushes returns the number of payloads pushed onto an edge.
func (r *EdgeRecorder) Pushes(edgeName string) uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	if t, ok := r.traces[edgeName]; ok {
		return t.pushes
	}

	return 0
}

// Digest returns the digest of the pushes onto an edge.
func (r *EdgeRecorder) Digest(edgeName string) uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	if t, ok := r.traces[edgeName]; ok {
		return t.digest.Sum64()
	}

	return 0
}

// Digests returns the digest of every edge.
func (r *EdgeRecorder) Digests() map[string]uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	digests := make(map[string]uint64, len(r.traces))
	for name, t := range r.traces {
		digests[name] = t.digest.Sum64()
	}

	return digests
}

// Push records a payload pushed onto an edge.
func (r *EdgeRecorder) Push(edge *modeling.Edge, tick uint64, p *payload.Payload) {
	r.lock.Lock()
	defer r.lock.Unlock()

	t, ok := r.traces[edge.Name()]
	if !ok {
		t = &edgeTrace{digest: xxhash.New()}
		r.traces[edge.Name()] = t
		r.edgeNames = append(r.edgeNames, edge.Name())
	}

	t.pushes++

	entryDigest := xxhash.New()
	r.write(t.digest, entryDigest, tick)

	sum := 0.0
	for i := 0; i < p.Len(); i++ {
		v := p.At(i)
		sum += v
		r.write(t.digest, entryDigest, math.Float64bits(v))
	}

	if r.backend == nil {
		return
	}

	r.backend.InsertData(EdgePushTable, edgePushEntry{
		Edge:   edge.Name(),
		Tick:   tick,
		Len:    p.Len(),
		Sum:    sum,
		Digest: strconv.FormatUint(entryDigest.Sum64(), 16),
	})
}

func (r *EdgeRecorder) write(a, b *xxhash.Digest, v uint64) {
	binary.LittleEndian.PutUint64(r.scratch[:], v)
	_, _ = a.Write(r.scratch[:])
	_, _ = b.Write(r.scratch[:])
}

// StartActivation does nothing.
func (r *EdgeRecorder) StartActivation(*modeling.Node, uint64) {}

// EndActivation does nothing.
func (r *EdgeRecorder) EndActivation(*modeling.Node, uint64, []*modeling.CapacityError) {}

// Stall does nothing.
func (r *EdgeRecorder) Stall(*modeling.Node, uint64) {}
