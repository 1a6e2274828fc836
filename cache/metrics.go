package cache

// EvictReason explains why entries left a worker.
type EvictReason int

const (
	// EvictExpired: removed because the TTL deadline passed.
	EvictExpired EvictReason = iota
	// EvictStolen: migrated to another worker by the rebalancer. Counted
	// into the global eviction total as well, so exporters see one
	// consistent eviction stream.
	EvictStolen
	// EvictDropped: a redundant replica discarded during a drain because
	// every surviving worker already holds the entry.
	EvictDropped
)

// Metrics exposes engine-level observability hooks.
// NoopMetrics is used by default.
type Metrics interface {
	Hit()
	Miss()
	Set()
	Evict(reason EvictReason, n int)
	Migrate(n int)
	Size(entries int)
	Workers(active, total int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                   {}
func (NoopMetrics) Miss()                  {}
func (NoopMetrics) Set()                   {}
func (NoopMetrics) Evict(EvictReason, int) {}
func (NoopMetrics) Migrate(int)            {}
func (NoopMetrics) Size(int)               {}
func (NoopMetrics) Workers(int, int)       {}

var _ Metrics = NoopMetrics{}
