package cache

import (
	"slices"
	"sync"

	"github.com/stealcache/stealcache/partition"
)

// registry owns the worker topology: the id -> state map, the registration
// order used by broadcast scans, and the routing structures derived from
// the active worker set.
//
// One RWMutex guards the whole topology. Cache reads take the shared lock;
// every mutation (cache writes, steals, register/unregister) takes the
// exclusive lock. The critical section must never span I/O.
type registry[K comparable, V any] struct {
	mu sync.RWMutex

	workers map[string]*workerState[K, V]

	// order preserves registration order for broadcast scans.
	order []string

	// activeIDs is the sorted active worker list backing the
	// partition-index-modulo primary mapping.
	activeIDs []string

	// ring is the consistent-hash alternative, rebuilt on every topology
	// change; nil unless adaptive partitioning is enabled.
	ring    *partition.Ring
	vnodes  int
	useRing bool
}

func newRegistry[K comparable, V any](useRing bool, vnodes int) *registry[K, V] {
	return &registry[K, V]{
		workers: make(map[string]*workerState[K, V]),
		vnodes:  vnodes,
		useRing: useRing,
	}
}

// rebuildRoutingLocked recomputes the derived routing structures. Must run
// under the exclusive lock whenever the active worker set changes.
func (r *registry[K, V]) rebuildRoutingLocked() {
	r.activeIDs = r.activeIDs[:0]
	for id, w := range r.workers {
		if w.active {
			r.activeIDs = append(r.activeIDs, id)
		}
	}
	slices.Sort(r.activeIDs)
	if r.useRing {
		r.ring = partition.NewRing(r.activeIDs, r.vnodes)
	}
}

// primaryLocked maps a partition index (and optionally the raw key hash) to
// the active worker owning the key. Requires at least the shared lock.
func (r *registry[K, V]) primaryLocked(partitionIdx int, keyHash uint64, hashed bool) *workerState[K, V] {
	if len(r.activeIDs) == 0 {
		return nil
	}
	if r.useRing && r.ring != nil && hashed {
		if id, ok := r.ring.Lookup(keyHash); ok {
			return r.workers[id]
		}
	}
	if partitionIdx < 0 {
		partitionIdx = -partitionIdx
	}
	return r.workers[r.activeIDs[partitionIdx%len(r.activeIDs)]]
}

// totalEntriesLocked sums physical entries across all workers, active or
// not. Requires at least the shared lock.
func (r *registry[K, V]) totalEntriesLocked() int {
	total := 0
	for _, w := range r.workers {
		total += len(w.entries)
	}
	return total
}

// activeCountLocked reports (active, total) worker counts.
func (r *registry[K, V]) activeCountLocked() (active, total int) {
	return len(r.activeIDs), len(r.workers)
}

// removeFromOrderLocked drops id from the registration-order list.
func (r *registry[K, V]) removeFromOrderLocked(id string) {
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
