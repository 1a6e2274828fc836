package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stealcache/stealcache/internal/singleflight"
	"github.com/stealcache/stealcache/partition"
	"github.com/stealcache/stealcache/placement"
	"github.com/stealcache/stealcache/policy/lru"
)

// engine is the work-stealing cache: a registry of named workers, a
// partitioner for primary routing, an optional placement predictor, and a
// rebalancer migrating entries off overloaded workers.
type engine[K comparable, V any] struct {
	cfg Config
	opt Options[K, V]

	part    partition.Partitioner[K]
	keyHash partition.KeyHasher[K] // nil when the partitioner hides its hash
	pred    placement.Predictor[K]
	tracker *placement.Tracker[K]

	reg     *registry[K, V]
	reb     *rebalancer[K, V]
	stats   *statsAggregator
	metrics Metrics
	log     Logger

	sf singleflight.Group[K, V]

	closed      atomic.Bool
	started     atomic.Bool
	rebalancing atomic.Bool // collapses concurrent fire-and-forget triggers
	stop        chan struct{}
	wg          sync.WaitGroup
}

// New constructs a work-stealing cache engine. The returned engine has no
// workers; register at least one before inserting.
func New[K comparable, V any](opt Options[K, V]) ManagedCache[K, V] {
	opt.Config.applyDefaults()
	if opt.Partitioner == nil {
		opt.Partitioner = partition.NewHash[K](0)
	}
	if opt.Victims == nil {
		opt.Victims = lru.New[K]()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = nopLogger{}
	}

	c := &engine[K, V]{
		cfg:     opt.Config,
		opt:     opt,
		part:    opt.Partitioner,
		reg:     newRegistry[K, V](opt.Config.AdaptivePartitioning, opt.Config.VirtualNodes),
		stats:   newStatsAggregator(),
		metrics: opt.Metrics,
		log:     opt.Logger,
		stop:    make(chan struct{}),
	}
	if kh, ok := opt.Partitioner.(partition.KeyHasher[K]); ok {
		c.keyHash = kh
	}
	if opt.Config.PredictivePlacement && opt.Predictor != nil {
		c.pred = opt.Predictor
		c.tracker = placement.NewTracker[K](4)
	}
	c.reb = &rebalancer[K, V]{
		reg:     c.reg,
		cfg:     c.cfg,
		victims: opt.Victims,
		stats:   c.stats,
		metrics: c.metrics,
		log:     c.log,
	}
	return c
}

// ---- Cache[K,V] implementation ----

// Get resolves the primary worker first, then falls back to a broadcast
// scan across active workers in registration order. The fallback makes
// reads racing a migration safe: a key in flight between workers is still
// found.
func (c *engine[K, V]) Get(k K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	now := c.now()

	// Expired copies seen along the way are removed after the shared lock
	// is released.
	var staleOn []string

	c.reg.mu.RLock()
	if w := c.primaryRLocked(k); w != nil && w.active {
		if e, ok := w.entries[k]; ok {
			if !e.expired(now) {
				e.touch(now)
				id := w.id
				c.reg.mu.RUnlock()
				c.afterHit(k, id, now)
				return e.val, true
			}
			staleOn = append(staleOn, w.id)
		}
	}
	for _, id := range c.reg.order {
		w := c.reg.workers[id]
		if w == nil || !w.active {
			continue
		}
		if e, ok := w.entries[k]; ok {
			if e.expired(now) {
				staleOn = appendUnique(staleOn, id)
				continue
			}
			e.touch(now)
			c.reg.mu.RUnlock()
			c.dropExpired(k, staleOn, now)
			c.afterHit(k, id, now)
			return e.val, true
		}
	}
	c.reg.mu.RUnlock()

	c.dropExpired(k, staleOn, now)
	c.stats.recordMiss()
	c.metrics.Miss()
	return zero, false
}

// Insert builds the entry once and links it into every target worker's map.
// Target selection: a configured predictor with an opinion wins; otherwise
// the write replicates to all active workers (or the first
// ReplicationFactor workers on the routing order) so lookups succeed even
// before routing has settled.
func (c *engine[K, V]) Insert(k K, v V, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	now := c.now()
	e := newEntry(v, now, c.deadline(ttl, now))

	// Predictor runs without any lock held; its result is validated under
	// the exclusive lock when applied.
	var proposed []string
	if c.pred != nil {
		proposed = c.pred.PredictPlacement(k, c.tracker.History(k))
	}

	c.reg.mu.Lock()
	if len(c.reg.activeIDs) == 0 {
		c.reg.mu.Unlock()
		return ErrNoWorkersAvailable
	}

	targets := c.targetsLocked(k, proposed)
	overloaded := false
	for _, id := range targets {
		w := c.reg.workers[id]
		if w == nil || !w.active {
			continue
		}
		w.entries[k] = e
		w.recomputeLoad(c.cfg.LoadNormalization)
		if w.loadFactor > c.cfg.LoadBalanceThreshold {
			overloaded = true
		}
	}
	entries := c.reg.totalEntriesLocked()
	c.reg.mu.Unlock()

	c.stats.recordSet()
	c.metrics.Set()
	c.metrics.Size(entries)

	if overloaded {
		c.triggerRebalance()
	}
	return nil
}

// Remove deletes the key from every worker holding a replica, not merely
// the first match, keeping the replicate-by-default write path consistent.
func (c *engine[K, V]) Remove(k K) (V, bool) {
	var val V
	if c.closed.Load() {
		return val, false
	}
	found := false

	c.reg.mu.Lock()
	for _, id := range c.reg.order {
		w := c.reg.workers[id]
		if e, ok := w.entries[k]; ok {
			if !found {
				val = e.val
				found = true
			}
			delete(w.entries, k)
			w.recomputeLoad(c.cfg.LoadNormalization)
		}
	}
	entries := c.reg.totalEntriesLocked()
	c.reg.mu.Unlock()

	if found {
		c.metrics.Size(entries)
		if c.tracker != nil {
			c.tracker.Forget(k)
		}
	}
	return val, found
}

// Clear empties every worker and resets the statistics.
func (c *engine[K, V]) Clear() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.reg.mu.Lock()
	for _, w := range c.reg.workers {
		w.entries = make(map[K]*entry[V])
		w.loadFactor = 0
	}
	c.reg.mu.Unlock()

	c.stats.reset()
	if c.tracker != nil {
		c.tracker.Reset()
	}
	c.metrics.Size(0)
	return nil
}

// Size sums physical entries across all workers, active or not.
func (c *engine[K, V]) Size() int {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return c.reg.totalEntriesLocked()
}

// Contains reports whether any active worker holds a non-expired copy.
// Unlike Get it records no statistics and does not touch recency.
func (c *engine[K, V]) Contains(k K) bool {
	if c.closed.Load() {
		return false
	}
	now := c.now()
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	for _, id := range c.reg.order {
		w := c.reg.workers[id]
		if !w.active {
			continue
		}
		if e, ok := w.entries[k]; ok && !e.expired(now) {
			return true
		}
	}
	return false
}

// Stats snapshots the counters with a freshly computed entry count.
func (c *engine[K, V]) Stats() CacheStats {
	return c.stats.snapshot(c.Size())
}

// CleanupExpired retains only non-expired entries on every worker and
// reports the removed count through the eviction counter.
func (c *engine[K, V]) CleanupExpired() (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	now := c.now()
	removed := 0

	c.reg.mu.Lock()
	for _, w := range c.reg.workers {
		before := len(w.entries)
		for k, e := range w.entries {
			if e.expired(now) {
				delete(w.entries, k)
			}
		}
		if dropped := before - len(w.entries); dropped > 0 {
			removed += dropped
			w.recomputeLoad(c.cfg.LoadNormalization)
		}
	}
	entries := c.reg.totalEntriesLocked()
	c.reg.mu.Unlock()

	if removed > 0 {
		c.stats.recordEvictions(removed)
		c.metrics.Evict(EvictExpired, removed)
		c.metrics.Size(entries)
	}
	return removed, nil
}

// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
// Concurrent loads for the same key are coalesced (singleflight). The
// loaded value is inserted best-effort with the configured DefaultTTL.
func (c *engine[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}
	return c.sf.Do(ctx, k, func() (V, error) {
		// Double-check after joining the flight.
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err != nil {
			return v, err
		}
		if insErr := c.Insert(k, v, c.opt.DefaultTTL); insErr != nil {
			c.log.Warn("loaded value not cached", "error", insErr)
		}
		return v, nil
	})
}

// Close stops the background loops and marks the engine closed. Further
// operations are ignored or fail with ErrClosed.
func (c *engine[K, V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.stop)
	c.wg.Wait()
	return nil
}

// ---- helpers ----

func (c *engine[K, V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// deadline converts a relative TTL into an absolute UnixNano deadline.
// Non-positive ttl returns 0 (no expiration).
func (c *engine[K, V]) deadline(ttl time.Duration, now int64) int64 {
	if ttl <= 0 {
		return 0
	}
	return now + int64(ttl)
}

// primaryRLocked resolves the key's primary worker. Requires the shared
// lock.
func (c *engine[K, V]) primaryRLocked(k K) *workerState[K, V] {
	var h uint64
	hashed := false
	if c.keyHash != nil {
		h = c.keyHash.Hash(k)
		hashed = true
	}
	return c.reg.primaryLocked(c.part.Partition(k), h, hashed)
}

// targetsLocked decides the final write target set under the exclusive
// lock. Predictor proposals are filtered to live active workers; an empty
// outcome falls back to the replication default. The proposed slice stays
// owned by the predictor and is never written to.
func (c *engine[K, V]) targetsLocked(k K, proposed []string) []string {
	if len(proposed) > 0 {
		valid := make([]string, 0, len(proposed))
		for _, id := range proposed {
			if w := c.reg.workers[id]; w != nil && w.active {
				valid = append(valid, id)
			}
		}
		if len(valid) > 0 {
			return valid
		}
	}

	active := c.reg.activeIDs
	rf := c.cfg.ReplicationFactor
	if rf <= 0 || rf >= len(active) {
		return active
	}
	// Cap fan-out: rf workers starting at the key's primary slot, wrapping
	// over the sorted active list.
	start := c.part.Partition(k) % len(active)
	if start < 0 {
		start = -start
	}
	targets := make([]string, 0, rf)
	for i := 0; i < rf; i++ {
		targets = append(targets, active[(start+i)%len(active)])
	}
	return targets
}

// afterHit records statistics and access history off the lock path.
func (c *engine[K, V]) afterHit(k K, workerID string, now int64) {
	c.stats.recordHit()
	c.metrics.Hit()
	if c.tracker != nil {
		c.tracker.Observe(k, workerID, time.Unix(0, now))
	}
}

// dropExpired lazily removes expired copies discovered during a read.
// Best-effort: a concurrent overwrite wins.
func (c *engine[K, V]) dropExpired(k K, workerIDs []string, now int64) {
	if len(workerIDs) == 0 {
		return
	}
	removed := 0
	c.reg.mu.Lock()
	for _, id := range workerIDs {
		w := c.reg.workers[id]
		if w == nil {
			continue
		}
		if e, ok := w.entries[k]; ok && e.expired(now) {
			delete(w.entries, k)
			w.recomputeLoad(c.cfg.LoadNormalization)
			removed++
		}
	}
	c.reg.mu.Unlock()

	if removed > 0 {
		c.stats.recordEvictions(removed)
		c.metrics.Evict(EvictExpired, removed)
	}
}

// triggerRebalance fires one asynchronous rebalance cycle. Failures are
// logged, never surfaced to the triggering insert; concurrent triggers
// collapse into the in-flight cycle.
//
// closed is re-checked after the wg.Add so a cycle spawned while Close runs
// is still covered by Close's wg.Wait and never outlives it.
func (c *engine[K, V]) triggerRebalance() {
	if c.closed.Load() || !c.rebalancing.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	if c.closed.Load() {
		c.rebalancing.Store(false)
		c.wg.Done()
		return
	}
	go func() {
		defer c.wg.Done()
		defer c.rebalancing.Store(false)
		if n := c.reb.runOnce(); n > 0 {
			c.log.Debug("rebalance cycle complete", "migrated", n)
		}
	}()
}

func appendUnique(ids []string, id string) []string {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
