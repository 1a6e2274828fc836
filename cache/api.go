package cache

import (
	"context"
	"time"
)

// Cache is the generic key/value capability implemented by the engine.
// All methods are safe for concurrent use by multiple goroutines.
type Cache[K comparable, V any] interface {
	// Get returns the value for k and a presence flag. The primary worker
	// is consulted first; a broadcast scan over active workers catches
	// entries mid-migration. Expired entries are treated as absent and
	// lazily removed.
	Get(k K) (V, bool)

	// Insert writes k→v to the placement-selected workers, replicating to
	// every active worker when no prediction applies. ttl <= 0 disables
	// expiration. Returns ErrNoWorkersAvailable when no active worker can
	// take the write.
	Insert(k K, v V, ttl time.Duration) error

	// Remove deletes every replica of k and returns the removed value, if
	// any replica existed.
	Remove(k K) (V, bool)

	// Clear drops every worker's entries and resets the statistics.
	Clear() error

	// Size returns the number of physical entries across all workers.
	// With replicated writes this exceeds the distinct key count.
	Size() int

	// Contains reports whether any active worker holds a non-expired copy.
	Contains(k K) bool

	// Stats returns a snapshot of the engine counters.
	Stats() CacheStats

	// CleanupExpired removes every expired entry and returns the removed
	// count (physical entries).
	CleanupExpired() (int, error)

	// GetOrLoad returns the value for k, loading it via Options.Loader on
	// miss; concurrent loads for the same key are coalesced.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Close stops background loops and marks the engine closed.
	Close() error
}

// WorkerSet is the management surface of the engine, outside the generic
// cache contract.
type WorkerSet interface {
	// RegisterWorker adds an empty active worker.
	RegisterWorker(id string) error

	// UnregisterWorker drops the worker and all entries it holds. No
	// migration happens; use DecommissionWorker for a graceful drain.
	UnregisterWorker(id string) error

	// DecommissionWorker migrates the worker's entries to the remaining
	// active workers, then removes it.
	DecommissionWorker(id string) error

	// Heartbeat refreshes the worker's liveness stamp.
	Heartbeat(id string) error

	// SetWorkerActive toggles participation in reads, writes, and
	// rebalancing. Inactive workers stay addressable for management.
	SetWorkerActive(id string, active bool) error

	// Workers returns a snapshot of all workers in registration order.
	Workers() []WorkerInfo

	// Rebalance runs one synchronous rebalance cycle and returns the
	// number of migrated entries.
	Rebalance() int

	// Start launches the background rebalance and expiry-sweep loops.
	Start() error
}

// ManagedCache combines the cache contract with worker management.
type ManagedCache[K comparable, V any] interface {
	Cache[K, V]
	WorkerSet
}
