package cache

import (
	"sort"

	"github.com/stealcache/stealcache/policy"
)

// rebalancer migrates entry batches from overloaded to underloaded workers.
// A cycle runs Scan -> Classify -> Steal -> Update: classification happens
// under the shared lock, each steal re-checks its donor under the exclusive
// lock so a stale scan never over-drains, and migrated entries are
// accounted as evictions.
type rebalancer[K comparable, V any] struct {
	reg     *registry[K, V]
	cfg     Config
	victims policy.Selector[K]
	stats   *statsAggregator
	metrics Metrics
	log     Logger
}

// runOnce performs one rebalance cycle and returns the migrated entry
// count. Migrations within a cycle are independent; there is no ordering
// guarantee across concurrent donor/recipient pairs.
func (r *rebalancer[K, V]) runOnce() int {
	threshold := r.cfg.LoadBalanceThreshold

	// Scan: classify the active workers.
	r.reg.mu.RLock()
	var overloaded, underloaded []string
	for _, id := range r.reg.order {
		w := r.reg.workers[id]
		if !w.active {
			continue
		}
		switch {
		case w.loadFactor > threshold:
			overloaded = append(overloaded, id)
		case w.loadFactor < threshold*0.5:
			underloaded = append(underloaded, id)
		}
	}
	r.reg.mu.RUnlock()

	if len(overloaded) == 0 || len(underloaded) == 0 {
		r.log.Debug("rebalance skipped", "overloaded", len(overloaded), "underloaded", len(underloaded))
		return 0
	}

	// Classify/Steal: walk the full donor x recipient cross product, bounded
	// by MaxStealAttempts.
	moved := 0
	attempts := 0
	for _, donor := range overloaded {
		for _, recipient := range underloaded {
			if attempts >= r.cfg.MaxStealAttempts {
				return moved
			}
			attempts++

			r.reg.mu.Lock()
			n := r.stealLocked(donor, recipient, r.cfg.StealBatchSize, false)
			r.reg.mu.Unlock()
			moved += n
		}
	}
	return moved
}

// stealLocked moves up to batch entries from donor to recipient. Requires
// the exclusive lock. When force is false the donor must still be
// overloaded (the scan may be stale) and the recipient must still be below
// half the threshold.
//
// Conservation: entries the recipient already replicates are skipped, so a
// steal never duplicates or destroys a physical entry.
func (r *rebalancer[K, V]) stealLocked(donorID, recipientID string, batch int, force bool) int {
	donor := r.reg.workers[donorID]
	recipient := r.reg.workers[recipientID]
	if donor == nil || recipient == nil || !recipient.active {
		return 0
	}
	if !force {
		if !donor.active || donor.loadFactor <= r.cfg.LoadBalanceThreshold {
			return 0
		}
		if recipient.loadFactor >= r.cfg.LoadBalanceThreshold*0.5 {
			return 0
		}
	}

	candidates := make([]policy.Candidate[K], 0, len(donor.entries))
	for k, e := range donor.entries {
		if _, replicated := recipient.entries[k]; replicated {
			continue
		}
		candidates = append(candidates, policy.Candidate[K]{
			Key:        k,
			LastAccess: e.lastAccess.Load(),
			CreatedAt:  e.createdAt,
		})
	}
	keys := r.victims.Select(candidates, batch)
	if len(keys) == 0 {
		return 0
	}

	for _, k := range keys {
		e, ok := donor.entries[k]
		if !ok {
			continue
		}
		recipient.entries[k] = e
		delete(donor.entries, k)
	}
	donor.recomputeLoad(r.cfg.LoadNormalization)
	recipient.recomputeLoad(r.cfg.LoadNormalization)

	// Update: migrations feed the shared eviction counter plus a dedicated
	// migration signal for exporters.
	r.stats.recordEvictions(len(keys))
	r.metrics.Evict(EvictStolen, len(keys))
	r.metrics.Migrate(len(keys))
	return len(keys)
}

// drainLocked empties the (already deactivated) worker into the remaining
// active workers, least loaded first, reusing the steal step with the
// donor forced into the overloaded role. Requires the exclusive lock.
//
// Entries that every recipient already replicates are dropped; a live copy
// exists on each of them, so nothing is lost. Returns (migrated, dropped).
func (r *rebalancer[K, V]) drainLocked(donorID string) (moved, dropped int, err error) {
	donor := r.reg.workers[donorID]
	if donor == nil {
		return 0, 0, ErrWorkerNotFound
	}
	if len(r.reg.activeIDs) == 0 {
		return 0, 0, ErrNoWorkersAvailable
	}

	for len(donor.entries) > 0 {
		recipients := append([]string(nil), r.reg.activeIDs...)
		sort.Slice(recipients, func(i, j int) bool {
			return r.reg.workers[recipients[i]].loadFactor < r.reg.workers[recipients[j]].loadFactor
		})

		passMoved := 0
		for _, id := range recipients {
			passMoved += r.stealLocked(donorID, id, r.cfg.StealBatchSize, true)
			if len(donor.entries) == 0 {
				break
			}
		}
		moved += passMoved
		if passMoved == 0 {
			// Whatever remains is replicated on every recipient already.
			dropped = len(donor.entries)
			donor.entries = make(map[K]*entry[V])
			donor.recomputeLoad(r.cfg.LoadNormalization)
			if dropped > 0 {
				r.stats.recordEvictions(dropped)
				r.metrics.Evict(EvictDropped, dropped)
			}
			break
		}
	}
	return moved, dropped, nil
}
