package buffer

import (
	"container/heap"
	"fmt"
	"sync"

	"helindb/storage"
)

// rNode tracks one frame's access history for the LRU-K replacer. History
// holds at most k timestamps, oldest first, so history[0] is always either
// the frame's very first access (fewer than k accesses so far) or the
// oldest of its last k accesses (backward k-distance, once it has k).
type rNode struct {
	frameID   int
	history   []int64
	evictable bool
	heapIndex int
}

// lruHeap orders evictable frames so the best eviction candidate is always
// at index 0: frames with fewer than k recorded accesses sort before
// frames that have reached k (their backward k-distance is effectively
// infinite), and within either group the frame with the smaller
// history[0] sorts first — since every candidate is compared at the same
// logical clock value, that's equivalent to the one with the larger
// backward k-distance.
type lruHeap struct {
	nodes []*rNode
	k     int
}

func (h *lruHeap) Len() int { return len(h.nodes) }

func (h *lruHeap) Less(i, j int) bool {
	a, b := h.nodes[i], h.nodes[j]
	aInf := len(a.history) < h.k
	bInf := len(b.history) < h.k
	if aInf != bInf {
		return aInf
	}
	return a.history[0] < b.history[0]
}

func (h *lruHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].heapIndex = i
	h.nodes[j].heapIndex = j
}

func (h *lruHeap) Push(x any) {
	n := x.(*rNode)
	n.heapIndex = len(h.nodes)
	h.nodes = append(h.nodes, n)
}

func (h *lruHeap) Pop() any {
	old := h.nodes
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.heapIndex = -1
	h.nodes = old[:n-1]
	return node
}

// LRUKReplacer picks eviction victims among the frames marked evictable by
// approximating the backward k-distance algorithm: a frame that hasn't
// been accessed k times yet is preferred for eviction over one that has,
// and among frames that have, the one whose k-th most recent access is
// furthest in the past goes first.
type LRUKReplacer struct {
	mu    sync.Mutex
	k     int
	clock int64
	nodes []*rNode
	heap  lruHeap
}

// NewLRUKReplacer builds a replacer tracking poolSize frames (ids
// 0..poolSize-1) with history capped at k accesses per frame.
func NewLRUKReplacer(poolSize, k int) *LRUKReplacer {
	if poolSize <= 0 || k <= 0 {
		panic("buffer: pool size and k must be positive")
	}
	nodes := make([]*rNode, poolSize)
	for i := range nodes {
		nodes[i] = &rNode{frameID: i, heapIndex: -1}
	}
	return &LRUKReplacer{k: k, nodes: nodes, heap: lruHeap{k: k}}
}

func (r *LRUKReplacer) checkRange(frameID int) {
	if frameID < 0 || frameID >= len(r.nodes) {
		panic(fmt.Sprintf("buffer: frame id %d out of range [0,%d)", frameID, len(r.nodes)))
	}
}

// RecordAccess logs an access to frameID at the replacer's current logical
// time. accessType is accepted for parity with the pool's call sites but
// doesn't otherwise influence eviction order.
func (r *LRUKReplacer) RecordAccess(frameID int, accessType storage.AccessType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkRange(frameID)

	node := r.nodes[frameID]
	r.clock++
	node.history = append(node.history, r.clock)
	if len(node.history) > r.k {
		node.history = node.history[1:]
	}
	if node.evictable {
		heap.Fix(&r.heap, node.heapIndex)
	}
}

// SetEvictable marks frameID as eligible (or ineligible) for eviction. A
// pinned frame must be marked non-evictable; calling this with the frame's
// current state is a no-op.
func (r *LRUKReplacer) SetEvictable(frameID int, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkRange(frameID)

	node := r.nodes[frameID]
	if node.evictable == evictable {
		return
	}
	node.evictable = evictable
	if evictable {
		heap.Push(&r.heap, node)
	} else {
		heap.Remove(&r.heap, node.heapIndex)
	}
}

// Evict removes and returns the best eviction victim among evictable
// frames, clearing its history. It returns ok=false if no frame is
// currently evictable.
func (r *LRUKReplacer) Evict() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.heap.Len() == 0 {
		return 0, false
	}
	node := heap.Pop(&r.heap).(*rNode)
	node.evictable = false
	node.history = node.history[:0]
	return node.frameID, true
}

// Remove drops frameID's tracked history outright. It's a no-op for a
// frame that has never been recorded, and panics if the frame is tracked
// but not currently evictable — mirroring the contract violation that
// would otherwise silently evict a pinned frame.
func (r *LRUKReplacer) Remove(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkRange(frameID)

	node := r.nodes[frameID]
	if len(node.history) == 0 {
		return
	}
	if !node.evictable {
		panic(fmt.Sprintf("buffer: Remove called on non-evictable frame %d", frameID))
	}
	heap.Remove(&r.heap, node.heapIndex)
	node.evictable = false
	node.history = node.history[:0]
}

// Size returns the number of frames currently marked evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heap.Len()
}
