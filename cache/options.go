package cache

import (
	"github.com/go-kit/log"

	"github.com/thebanglabrief/thebanglabrief/store"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictTTL: expired by TTL (lazily on read, or by an EvictExpired sweep).
	EvictTTL EvictReason = iota
	// EvictCapacity: removed by EvictBySize to satisfy the size bound.
	EvictCapacity
	// EvictGarbage: removed because the stored envelope could not be decoded.
	EvictGarbage
)

// String returns the label used for logs and metrics.
func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictCapacity:
		return "capacity"
	case EvictGarbage:
		return "garbage"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit(namespace string)
	Miss(namespace string)
	Evict(namespace string, reason EvictReason)
	// Size reports fresh totals after an operation that scanned the cache
	// (Stats, EvictExpired, EvictBySize). It is not called on every write.
	Size(entries int, bytes int64)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the engine. Store is required; everything else has a
// sane default applied in New():
//   - nil Namespaces => DefaultNamespaces()
//   - nil Logger     => log.NewNopLogger()
//   - nil Metrics    => NoopMetrics
//   - nil Clock      => time.Now()
type Options struct {
	// Store is the durable backend all entries are persisted through.
	Store store.Store

	// Namespaces is the fixed set of content namespaces the engine manages.
	// Writes outside this set are rejected; sweeps, statistics and size
	// eviction cover exactly this set. The preference namespace is always
	// managed separately and must not appear here.
	Namespaces []string

	// Observability
	Logger  log.Logger
	Metrics Metrics

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock
}
