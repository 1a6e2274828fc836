package cache

import (
	"time"

	"github.com/stealcache/stealcache/internal/util"
)

// CacheStats is a point-in-time snapshot of the engine counters.
//
// TotalEntries counts physical entries across all workers. Because writes
// default to full replication, this is NOT the number of distinct logical
// keys: inserting one key with N active workers adds N entries.
type CacheStats struct {
	TotalEntries   int
	TotalHits      uint64
	TotalMisses    uint64
	TotalEvictions uint64
	TotalSets      uint64
	HitRatio       float64
	UptimeSeconds  uint64
	CreatedAt      time.Time
}

// statsAggregator keeps hot counters on separate cache lines; migrations
// are folded into the eviction counter.
type statsAggregator struct {
	hits      util.PaddedAtomicUint64
	misses    util.PaddedAtomicUint64
	sets      util.PaddedAtomicUint64
	evictions util.PaddedAtomicUint64

	createdAt time.Time
}

func newStatsAggregator() *statsAggregator {
	return &statsAggregator{createdAt: time.Now()}
}

func (s *statsAggregator) recordHit()            { s.hits.Add(1) }
func (s *statsAggregator) recordMiss()           { s.misses.Add(1) }
func (s *statsAggregator) recordSet()            { s.sets.Add(1) }
func (s *statsAggregator) recordEvictions(n int) { s.evictions.Add(uint64(n)) }

func (s *statsAggregator) reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.sets.Store(0)
	s.evictions.Store(0)
}

// snapshot builds a CacheStats with a caller-supplied fresh entry count.
func (s *statsAggregator) snapshot(entries int) CacheStats {
	st := CacheStats{
		TotalEntries:   entries,
		TotalHits:      s.hits.Load(),
		TotalMisses:    s.misses.Load(),
		TotalEvictions: s.evictions.Load(),
		TotalSets:      s.sets.Load(),
		UptimeSeconds:  uint64(time.Since(s.createdAt).Seconds()),
		CreatedAt:      s.createdAt,
	}
	if total := st.TotalHits + st.TotalMisses; total > 0 {
		st.HitRatio = float64(st.TotalHits) / float64(total)
	}
	return st
}
