package cache

import "time"

// workerState is one worker's slice of the cache. Everything except the
// per-entry recency stamps is guarded by the registry lock.
type workerState[K comparable, V any] struct {
	id            string
	entries       map[K]*entry[V]
	loadFactor    float64
	active        bool
	lastHeartbeat int64 // UnixNano
	registeredAt  int64 // UnixNano
}

func newWorkerState[K comparable, V any](id string, now int64) *workerState[K, V] {
	return &workerState[K, V]{
		id:            id,
		entries:       make(map[K]*entry[V]),
		active:        true,
		lastHeartbeat: now,
		registeredAt:  now,
	}
}

// recomputeLoad must run after every entries mutation so the load factor
// never goes stale.
func (w *workerState[K, V]) recomputeLoad(normalization int) {
	w.loadFactor = float64(len(w.entries)) / float64(normalization)
}

// WorkerInfo is a read-only snapshot of one worker, for the management
// surface and exporters.
type WorkerInfo struct {
	ID            string
	Entries       int
	LoadFactor    float64
	Active        bool
	LastHeartbeat time.Time
}

func (w *workerState[K, V]) info() WorkerInfo {
	return WorkerInfo{
		ID:            w.id,
		Entries:       len(w.entries),
		LoadFactor:    w.loadFactor,
		Active:        w.active,
		LastHeartbeat: time.Unix(0, w.lastHeartbeat),
	}
}
