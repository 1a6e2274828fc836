// Package cache implements a distributed, work-stealing in-memory cache:
// a generic key/value store sharded across a dynamic set of named workers,
// with background migration of entries from overloaded to underloaded
// workers and pluggable key-placement policies.
//
// # Design
//
//   - Topology: a WorkerRegistry owns the worker-id -> state mapping. One
//     RWMutex guards the whole topology; reads take the shared lock, every
//     mutation (including steals) takes the exclusive lock. The critical
//     section never spans I/O, so hold times stay short. The concurrency
//     unit is per call, not per worker, which is adequate for moderate
//     worker counts.
//
//   - Routing: a pure Partitioner maps keys to partition indices; the
//     registry maps indices onto the sorted active worker list. With
//     Config.AdaptivePartitioning the primary is resolved through a
//     consistent-hash ring instead, rebuilt on every topology change.
//     Either way, reads keep a broadcast-scan fallback across active
//     workers so entries in flight between workers are still found.
//
//   - Writes: without a placement prediction, an insert replicates to
//     every active worker: an availability-over-efficiency default that
//     makes lookups succeed before routing has settled. A predictor (see
//     the placement package) can pin hot keys to fewer workers;
//     Config.ReplicationFactor caps the fan-out.
//
//   - Work stealing: each worker's load factor is entryCount divided by
//     Config.LoadNormalization, a relative skew signal rather than a
//     capacity limit. When an insert pushes a worker past
//     Config.LoadBalanceThreshold, a rebalance cycle is triggered
//     asynchronously; cycles also run periodically after Start. Victims
//     are chosen by recency (policy/lru) and moved, not copied, so a cycle
//     never duplicates or loses a key.
//
//   - TTL: entries carry absolute UnixNano deadlines. Expiration is lazy
//     on read plus a periodic CleanupExpired sweep.
//
//   - Observability: Options.Metrics receives hit/miss/set/evict/migrate
//     signals (NoopMetrics by default; see metrics/prom for a Prometheus
//     adapter). Migrated entries also feed the eviction counter so
//     existing dashboards keep one consistent eviction stream.
//
// # Basic usage
//
//	c := cache.New[string, string](cache.Options[string, string]{})
//	_ = c.RegisterWorker("w1")
//	_ = c.RegisterWorker("w2")
//
//	_ = c.Insert("a", "1", 0) // replicated to w1 and w2
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Remove("a") // removes every replica
//
// # Management
//
//	_ = c.Heartbeat("w1")
//	_ = c.SetWorkerActive("w2", false) // excluded from reads/writes/steals
//	_ = c.DecommissionWorker("w1")     // drain entries, then remove
//	n := c.Rebalance()                 // force one cycle
//
// All methods are safe for concurrent use. A Get may race a migration; the
// broadcast-scan fallback makes that race safe.
package cache
