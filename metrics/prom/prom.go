// Package prom exports the cache Metrics signals as Prometheus collectors.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stealcache/stealcache/cache"
)

// Adapter implements cache.Metrics on top of Prometheus counters/gauges.
// All Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	sets       prometheus.Counter
	evicts     *prometheus.CounterVec
	migrations prometheus.Counter
	entries    prometheus.Gauge
	workers    *prometheus.GaugeVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "hits_total",
			Help: "Cache hits", ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "misses_total",
			Help: "Cache misses", ConstLabels: constLabels,
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "sets_total",
			Help: "Cache writes", ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "evictions_total",
			Help: "Entries removed, by reason (migrations included)", ConstLabels: constLabels,
		}, []string{"reason"}),
		migrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "migrations_total",
			Help: "Entries migrated between workers by the rebalancer", ConstLabels: constLabels,
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "entries",
			Help: "Resident physical entries across all workers", ConstLabels: constLabels,
		}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "workers",
			Help: "Registered workers by state", ConstLabels: constLabels,
		}, []string{"state"}),
	}
	reg.MustRegister(a.hits, a.misses, a.sets, a.evicts, a.migrations, a.entries, a.workers)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Set increments the write counter.
func (a *Adapter) Set() { a.sets.Inc() }

// Evict adds n to the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason, n int) {
	a.evicts.WithLabelValues(reason(r)).Add(float64(n))
}

// Migrate adds n to the migration counter.
func (a *Adapter) Migrate(n int) { a.migrations.Add(float64(n)) }

// Size updates the resident-entries gauge.
func (a *Adapter) Size(entries int) { a.entries.Set(float64(entries)) }

// Workers updates the worker gauges.
func (a *Adapter) Workers(active, total int) {
	a.workers.WithLabelValues("active").Set(float64(active))
	a.workers.WithLabelValues("total").Set(float64(total))
}

// reason maps an EvictReason to a stable label value.
func reason(r cache.EvictReason) string {
	switch r {
	case cache.EvictStolen:
		return "stolen"
	case cache.EvictDropped:
		return "dropped"
	default:
		return "expired"
	}
}

// Compile-time check: Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
