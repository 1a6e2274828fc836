package cache

import (
	"context"
	"time"

	"github.com/stealcache/stealcache/partition"
	"github.com/stealcache/stealcache/placement"
	"github.com/stealcache/stealcache/policy"
)

// Clock provides time in UnixNano; override for deterministic TTL tests.
type Clock interface{ NowUnixNano() int64 }

// Config tunes the work-stealing engine. Zero fields are replaced with the
// DefaultConfig values in New.
type Config struct {
	// MaxStealAttempts bounds the number of (donor, recipient) pairs
	// processed per rebalance cycle.
	MaxStealAttempts int

	// StealBatchSize bounds how many entries one steal moves.
	StealBatchSize int

	// LoadBalanceThreshold is the load factor above which a worker is
	// overloaded; workers below half of it are underloaded.
	LoadBalanceThreshold float64

	// LoadNormalization divides a worker's entry count to produce its load
	// factor. The load factor is a relative skew signal, not a capacity
	// limit; workers are never rejected for exceeding it.
	LoadNormalization int

	// ReplicationFactor caps the write fan-out when no placement prediction
	// applies: 0 replicates to every active worker (the availability-first
	// default), a positive value writes to that many workers starting at
	// the key's primary.
	ReplicationFactor int

	// AdaptivePartitioning routes primary lookups through a consistent-hash
	// ring rebuilt on every topology change instead of the sorted-id modulo
	// mapping.
	AdaptivePartitioning bool

	// VirtualNodes is the per-worker virtual node count for the ring.
	VirtualNodes int

	// PredictivePlacement enables the Options.Predictor on the write path
	// and access-history tracking on the read path.
	PredictivePlacement bool

	// RebalanceInterval is the background rebalance period (Start).
	RebalanceInterval time.Duration

	// CleanupInterval is the background expired-entry sweep period (Start).
	CleanupInterval time.Duration
}

// DefaultConfig returns the tuning used when Options.Config is zero.
func DefaultConfig() Config {
	return Config{
		MaxStealAttempts:     8,
		StealBatchSize:       64,
		LoadBalanceThreshold: 0.75,
		LoadNormalization:    1000,
		VirtualNodes:         150,
		RebalanceInterval:    30 * time.Second,
		CleanupInterval:      5 * time.Minute,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxStealAttempts <= 0 {
		c.MaxStealAttempts = d.MaxStealAttempts
	}
	if c.StealBatchSize <= 0 {
		c.StealBatchSize = d.StealBatchSize
	}
	if c.LoadBalanceThreshold <= 0 {
		c.LoadBalanceThreshold = d.LoadBalanceThreshold
	}
	if c.LoadNormalization <= 0 {
		c.LoadNormalization = d.LoadNormalization
	}
	if c.VirtualNodes <= 0 {
		c.VirtualNodes = d.VirtualNodes
	}
	if c.RebalanceInterval <= 0 {
		c.RebalanceInterval = d.RebalanceInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
}

// Options configures the engine. Zero values are safe; defaults are applied
// in New:
//   - nil Partitioner => hash partitioner with an automatic partition count
//   - nil Victims     => recency (LRU) victim selection
//   - nil Metrics     => NoopMetrics
//   - nil Logger      => discard
type Options[K comparable, V any] struct {
	// Config holds the work-stealing tuning knobs.
	Config Config

	// Partitioner resolves a key's logical partition. It must be callable
	// without any engine lock held.
	Partitioner partition.Partitioner[K]

	// Predictor proposes write placements when Config.PredictivePlacement
	// is set. Optional; the engine tolerates its absence entirely.
	Predictor placement.Predictor[K]

	// Victims selects which entries a steal migrates.
	Victims policy.Selector[K]

	// DefaultTTL applies to GetOrLoad inserts (0 = no TTL).
	DefaultTTL time.Duration

	// Loader fetches a value on GetOrLoad miss.
	Loader func(ctx context.Context, k K) (V, error)

	// Metrics receives hit/miss/set/evict/migrate signals.
	Metrics Metrics

	// Logger receives rebalance and topology events.
	Logger Logger

	// Clock overrides the time source (tests). Nil => time.Now().
	Clock Clock
}
