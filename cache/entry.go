package cache

import "sync/atomic"

// entry is one cached value held by a worker. Replicated writes share a
// single *entry across workers; the value and deadlines are immutable after
// construction, so sharing is safe. The recency stamps are atomic so read
// paths can update them while holding only the registry read lock.
type entry[V any] struct {
	val       V
	createdAt int64 // UnixNano
	exp       int64 // absolute UnixNano deadline, 0 = no TTL

	lastAccess atomic.Int64
	accesses   atomic.Uint64
}

func newEntry[V any](v V, now, exp int64) *entry[V] {
	e := &entry[V]{val: v, createdAt: now, exp: exp}
	e.lastAccess.Store(now)
	return e
}

func (e *entry[V]) expired(now int64) bool {
	return e.exp != 0 && now > e.exp
}

// touch stamps a hit; feeds steal-victim recency selection.
func (e *entry[V]) touch(now int64) {
	e.lastAccess.Store(now)
	e.accesses.Add(1)
}
