// Package prom exports cache and quota signals as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thebanglabrief/thebanglabrief/cache"
	"github.com/thebanglabrief/thebanglabrief/quota"
)

// CacheAdapter implements cache.Metrics and exports Prometheus
// counters/gauges. Safe for concurrent use; all Prometheus metric types
// are goroutine-safe.
type CacheAdapter struct {
	hits    *prometheus.CounterVec
	misses  *prometheus.CounterVec
	evicts  *prometheus.CounterVec
	entries prometheus.Gauge
	bytes   prometheus.Gauge
}

// NewCache constructs a Prometheus adapter for the cache engine.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func NewCache(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *CacheAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &CacheAdapter{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits by namespace",
			ConstLabels: constLabels,
		}, []string{"namespace"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses by namespace",
			ConstLabels: constLabels,
		}, []string{"namespace"}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Cache evictions by namespace and reason",
			ConstLabels: constLabels,
		}, []string{"namespace", "reason"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Entries persisted across content namespaces at the last scan",
			ConstLabels: constLabels,
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_bytes",
			Help:        "Serialized bytes across content namespaces at the last scan",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.entries, a.bytes)
	return a
}

// Hit increments the hit counter for a namespace.
func (a *CacheAdapter) Hit(namespace string) { a.hits.WithLabelValues(namespace).Inc() }

// Miss increments the miss counter for a namespace.
func (a *CacheAdapter) Miss(namespace string) { a.misses.WithLabelValues(namespace).Inc() }

// Evict increments the eviction counter with namespace and reason labels.
func (a *CacheAdapter) Evict(namespace string, r cache.EvictReason) {
	a.evicts.WithLabelValues(namespace, r.String()).Inc()
}

// Size updates the entry and byte gauges after a scan.
func (a *CacheAdapter) Size(entries int, bytes int64) {
	a.entries.Set(float64(entries))
	a.bytes.Set(float64(bytes))
}

// Compile-time check: ensure CacheAdapter implements cache.Metrics.
var _ cache.Metrics = (*CacheAdapter)(nil)

// QuotaAdapter implements quota.Metrics and exports budget signals.
type QuotaAdapter struct {
	consumed  *prometheus.CounterVec
	denied    *prometheus.CounterVec
	remaining prometheus.Gauge
}

// NewQuota constructs a Prometheus adapter for the quota governor.
// Parameters mirror NewCache.
func NewQuota(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *QuotaAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &QuotaAdapter{
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "units_consumed_total",
			Help:        "Quota units consumed by resource kind",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "admissions_denied_total",
			Help:        "Admissions denied by resource kind",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "units_remaining",
			Help:        "Quota units left in today's budget",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.consumed, a.denied, a.remaining)
	return a
}

// Consumed adds charged units for a resource kind.
func (a *QuotaAdapter) Consumed(kind string, units int64) {
	a.consumed.WithLabelValues(kindLabel(kind)).Add(float64(units))
}

// Denied increments the denial counter for a resource kind.
func (a *QuotaAdapter) Denied(kind string) {
	a.denied.WithLabelValues(kindLabel(kind)).Inc()
}

// Remaining sets the remaining-budget gauge.
func (a *QuotaAdapter) Remaining(units int64) {
	a.remaining.Set(float64(units))
}

// kindLabel keeps the label space closed when callers consume without a
// kind.
func kindLabel(kind string) string {
	if kind == "" {
		return "other"
	}
	return kind
}

// Compile-time check: ensure QuotaAdapter implements quota.Metrics.
var _ quota.Metrics = (*QuotaAdapter)(nil)
