// Package placement provides advisory write-placement prediction based on
// observed key access patterns.
package placement

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// History summarizes the observed accesses of one key.
type History struct {
	// Count is the number of recorded accesses.
	Count uint64
	// LastAccess is when the key was last served.
	LastAccess time.Time
	// Workers lists workers recently observed serving the key, most recent
	// first, deduplicated.
	Workers []string
}

// Predictor proposes target workers for a write. Implementations must be
// pure with respect to engine state and safe to call without any engine
// lock held. An empty result means "no opinion"; the engine then applies
// its own placement default.
type Predictor[K comparable] interface {
	PredictPlacement(key K, hist History) []string
}

// Tracker records per-key access observations on a lock-free map so the
// cache read path can feed it without touching the registry lock.
type Tracker[K comparable] struct {
	m          *xsync.Map[K, *record]
	maxWorkers int
}

type record struct {
	count atomic.Uint64
	last  atomic.Int64 // UnixNano

	mu      sync.Mutex
	workers []string // most recent first
}

// NewTracker builds a Tracker remembering up to maxWorkers serving workers
// per key (<= 0 defaults to 4).
func NewTracker[K comparable](maxWorkers int) *Tracker[K] {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Tracker[K]{
		m:          xsync.NewMap[K, *record](),
		maxWorkers: maxWorkers,
	}
}

// Observe records that workerID served an access of key at time now.
func (t *Tracker[K]) Observe(key K, workerID string, now time.Time) {
	r, _ := t.m.LoadOrStore(key, &record{})
	r.count.Add(1)
	r.last.Store(now.UnixNano())

	r.mu.Lock()
	// Move workerID to the front, keeping the list short and deduplicated.
	for i, w := range r.workers {
		if w == workerID {
			copy(r.workers[1:i+1], r.workers[:i])
			r.workers[0] = workerID
			r.mu.Unlock()
			return
		}
	}
	r.workers = append([]string{workerID}, r.workers...)
	if len(r.workers) > t.maxWorkers {
		r.workers = r.workers[:t.maxWorkers]
	}
	r.mu.Unlock()
}

// History returns the recorded history for key (zero value when unseen).
func (t *Tracker[K]) History(key K) History {
	r, ok := t.m.Load(key)
	if !ok {
		return History{}
	}
	h := History{
		Count:      r.count.Load(),
		LastAccess: time.Unix(0, r.last.Load()),
	}
	r.mu.Lock()
	h.Workers = append([]string(nil), r.workers...)
	r.mu.Unlock()
	return h
}

// Forget drops the history for key.
func (t *Tracker[K]) Forget(key K) { t.m.Delete(key) }

// Reset drops all recorded histories.
func (t *Tracker[K]) Reset() { t.m.Clear() }

// Len returns the number of tracked keys.
func (t *Tracker[K]) Len() int { return t.m.Size() }
