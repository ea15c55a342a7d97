// Package cache implements the engine that turns the durable store into a
// content cache: per-entry expiration, global size accounting, and eviction.
//
// Design
//
//   - Storage: every entry is persisted through a store.Store under one of a
//     fixed set of content namespaces. The engine is the only writer of cache
//     content; callers never touch the store directly.
//
//   - Envelope: values are wrapped in a small versioned binary envelope
//     carrying the write timestamp and the TTL, so expiry is decided from
//     persisted metadata and survives process restarts.
//
//   - Expiration: lazy. A read that observes an expired entry deletes it and
//     reports a miss. EvictExpired sweeps whole namespaces and is meant to be
//     driven by a caller-owned timer (see the maintenance package); the
//     engine itself runs no background work.
//
//   - Size eviction: EvictBySize removes the globally oldest-by-write-time
//     entries across all content namespaces until the total serialized size
//     fits the bound. Ordering is by write time, not last access: tracking
//     access times would cost a store write per read, and for re-fetchable
//     remote content write-time recency is close enough.
//
//   - Preferences: a dedicated namespace for small operational values (the
//     quota governor's day counters). Preferences are exempt from statistics,
//     sweeps, and size eviction, and are not wrapped in the envelope.
//
//   - Concurrency: one engine instance is shared process-wide; a single
//     coarse RWMutex serializes mutations (including the lazy deletes done
//     by Get). Contention is low-volume, correctness wins over throughput.
//
//   - Failure policy: the cache is a best-effort accelerator. Store write
//     failures are logged and swallowed; undecodable envelopes are logged,
//     deleted and reported as misses. Only programmer errors (negative TTL,
//     unknown namespace) surface as errors.
//
// Basic usage
//
//	eng := cache.New(cache.Options{Store: db})
//	_ = eng.Put(cache.NamespaceVideos, "v1", payload, time.Hour)
//	if raw, ok := eng.Get(cache.NamespaceVideos, "v1"); ok {
//	    _ = raw // decode payload
//	}
//	removed := eng.EvictBySize(64 << 20)
//
// Metrics
//
// Options.Metrics receives Hit/Miss/Evict/Size signals. By default
// NoopMetrics is used; plug the Prometheus adapter from metrics/prom to
// export them.
package cache
