package cache

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/thebanglabrief/thebanglabrief/store"
)

// ErrInvalidTTL is returned by Put when the TTL is negative.
var ErrInvalidTTL = errors.New("cache: negative ttl")

// ErrUnknownNamespace is returned when a namespace is not part of the
// engine's configured content set.
var ErrUnknownNamespace = errors.New("cache: unknown namespace")

// Engine is the cache layered over a durable store. One instance is shared
// process-wide; all methods are safe for concurrent use.
type Engine struct {
	mu sync.RWMutex

	store   store.Store
	spaces  []string            // content namespaces, scan order
	content map[string]struct{} // membership check for spaces

	logger  log.Logger
	metrics Metrics
	clock   Clock
}

// New constructs an Engine with the provided Options.
// Defaults:
//   - nil Namespaces -> DefaultNamespaces()
//   - nil Metrics    -> NoopMetrics
//   - nil Logger     -> log.NewNopLogger()
//
// New panics on construction errors (missing Store, malformed namespace
// set); these are programmer errors, not runtime conditions.
func New(opt Options) *Engine {
	if opt.Store == nil {
		panic("cache: Store must not be nil")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = log.NewNopLogger()
	}

	spaces := opt.Namespaces
	if len(spaces) == 0 {
		spaces = DefaultNamespaces()
	}
	spaces = append([]string(nil), spaces...)

	content := make(map[string]struct{}, len(spaces))
	for _, ns := range spaces {
		if err := store.ValidateNamespace(ns); err != nil {
			panic("cache: " + err.Error() + ": " + strconv.Quote(ns))
		}
		if ns == NamespacePrefs {
			panic("cache: preference namespace cannot be managed as content")
		}
		if _, dup := content[ns]; dup {
			panic("cache: duplicate namespace " + strconv.Quote(ns))
		}
		content[ns] = struct{}{}
	}

	return &Engine{
		store:   opt.Store,
		spaces:  spaces,
		content: content,
		logger:  opt.Logger,
		metrics: opt.Metrics,
		clock:   opt.Clock,
	}
}

// ---- content operations ----

// Put stores payload under (namespace, key) with the given TTL, overwriting
// any previous entry and resetting its write time. A zero TTL means the
// entry never expires. Store write failures are logged and swallowed; the
// only errors Put returns are ErrInvalidTTL and ErrUnknownNamespace.
func (e *Engine) Put(namespace, key string, payload []byte, ttl time.Duration) error {
	if ttl < 0 {
		return ErrInvalidTTL
	}
	if _, ok := e.content[namespace]; !ok {
		return ErrUnknownNamespace
	}
	raw := encodeEntry(entry{payload: payload, storedAt: e.now(), ttl: ttl})

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Put(namespace, key, raw); err != nil {
		level.Warn(e.logger).Log("msg", "cache write failed", "namespace", namespace, "key", key, "err", err)
	}
	return nil
}

// Get returns the payload for (namespace, key) and a presence flag.
// An expired or undecodable entry is deleted and reported as a miss;
// a hit does not refresh the entry's TTL.
func (e *Engine) Get(namespace, key string) ([]byte, bool) {
	if _, ok := e.content[namespace]; !ok {
		e.metrics.Miss(namespace)
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	raw, err := e.store.Get(namespace, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			level.Warn(e.logger).Log("msg", "cache read failed", "namespace", namespace, "key", key, "err", err)
		}
		e.metrics.Miss(namespace)
		return nil, false
	}
	ent, err := decodeEntry(raw)
	if err != nil {
		e.dropLocked(namespace, key, EvictGarbage)
		e.metrics.Miss(namespace)
		return nil, false
	}
	if ent.expired(e.now()) {
		e.dropLocked(namespace, key, EvictTTL)
		e.metrics.Miss(namespace)
		return nil, false
	}
	e.metrics.Hit(namespace)
	return ent.payload, true
}

// Contains reports whether a live entry exists for (namespace, key).
// Unlike Get it is read-only: an expired entry answers false but is left
// for the next Get or sweep to delete. Contains does not touch metrics.
func (e *Engine) Contains(namespace, key string) bool {
	if _, ok := e.content[namespace]; !ok {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	raw, err := e.store.Get(namespace, key)
	if err != nil {
		return false
	}
	ent, err := decodeEntry(raw)
	if err != nil {
		return false
	}
	return !ent.expired(e.now())
}

// Remove deletes (namespace, key) if present. Removing an absent entry is
// a no-op.
func (e *Engine) Remove(namespace, key string) {
	if _, ok := e.content[namespace]; !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Delete(namespace, key); err != nil {
		level.Warn(e.logger).Log("msg", "cache delete failed", "namespace", namespace, "key", key, "err", err)
	}
}

// Clear removes every entry in the given namespace; an empty namespace
// defaults to NamespaceGeneral. Preferences cannot be cleared through
// Clear. Individual delete failures are logged and skipped.
func (e *Engine) Clear(namespace string) error {
	if namespace == "" {
		namespace = NamespaceGeneral
	}
	if _, ok := e.content[namespace]; !ok {
		return ErrUnknownNamespace
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked(namespace)
	return nil
}

// ClearContent removes every entry in every content namespace, leaving
// preferences untouched.
func (e *Engine) ClearContent() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ns := range e.spaces {
		e.clearLocked(ns)
	}
}

// ---- maintenance operations ----

// EvictExpired scans all content namespaces and deletes entries whose TTL
// has passed, along with undecodable garbage. It returns the number of
// entries removed. The scan holds the engine lock for its duration; it is
// meant to run from a periodic sweeper, not on a request path.
func (e *Engine) EvictExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	removed, live, liveBytes := 0, 0, int64(0)
	for _, ns := range e.spaces {
		keys, err := e.store.Keys(ns)
		if err != nil {
			level.Warn(e.logger).Log("msg", "cache scan failed", "namespace", ns, "err", err)
			continue
		}
		for _, k := range keys {
			raw, err := e.store.Get(ns, k)
			if err != nil {
				continue
			}
			ent, derr := decodeEntry(raw)
			switch {
			case derr != nil:
				if e.dropLocked(ns, k, EvictGarbage) {
					removed++
				}
			case ent.expired(now):
				if e.dropLocked(ns, k, EvictTTL) {
					removed++
				}
			default:
				live++
				liveBytes += int64(len(raw))
			}
		}
	}
	e.metrics.Size(live, liveBytes)
	return removed
}

// EvictBySize deletes entries, oldest write time first, until the total
// serialized size of all content namespaces is at most maxBytes. Entries
// with equal write times are removed in (namespace, key) order so repeated
// runs over the same state pick the same victims. Expired entries that
// have not been swept yet still count toward the total; being the oldest,
// they are the first to go. Returns the number of entries removed.
func (e *Engine) EvictBySize(maxBytes int64) int {
	if maxBytes < 0 {
		maxBytes = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	type victim struct {
		ns, key  string
		storedAt int64
		size     int64
	}
	var (
		all   []victim
		total int64
		live  int
	)
	for _, ns := range e.spaces {
		keys, err := e.store.Keys(ns)
		if err != nil {
			level.Warn(e.logger).Log("msg", "cache scan failed", "namespace", ns, "err", err)
			continue
		}
		for _, k := range keys {
			raw, err := e.store.Get(ns, k)
			if err != nil {
				continue
			}
			// Garbage has no decodable write time; storedAt zero sorts it
			// to the front of the eviction order.
			var storedAt int64
			if ent, derr := decodeEntry(raw); derr == nil {
				storedAt = ent.storedAt
			}
			all = append(all, victim{ns: ns, key: k, storedAt: storedAt, size: int64(len(raw))})
			total += int64(len(raw))
			live++
		}
	}

	removed := 0
	if total > maxBytes {
		sort.Slice(all, func(i, j int) bool {
			a, b := all[i], all[j]
			if a.storedAt != b.storedAt {
				return a.storedAt < b.storedAt
			}
			if a.ns != b.ns {
				return a.ns < b.ns
			}
			return a.key < b.key
		})
		for _, v := range all {
			if total <= maxBytes {
				break
			}
			if e.dropLocked(v.ns, v.key, EvictCapacity) {
				total -= v.size
				live--
				removed++
			}
		}
	}
	e.metrics.Size(live, total)
	return removed
}

// Stats scans all content namespaces and returns entry counts and
// serialized sizes. Expired entries that have not been swept yet are
// still counted; run EvictExpired first for live-only numbers.
func (e *Engine) Stats() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Statistics{PerNamespace: make([]NamespaceStats, 0, len(e.spaces))}
	for _, ns := range e.spaces {
		nss := NamespaceStats{Namespace: ns}
		keys, err := e.store.Keys(ns)
		if err != nil {
			level.Warn(e.logger).Log("msg", "cache scan failed", "namespace", ns, "err", err)
			stats.PerNamespace = append(stats.PerNamespace, nss)
			continue
		}
		for _, k := range keys {
			raw, err := e.store.Get(ns, k)
			if err != nil {
				continue
			}
			nss.Entries++
			nss.Bytes += int64(len(raw))
		}
		stats.Entries += nss.Entries
		stats.Bytes += nss.Bytes
		stats.PerNamespace = append(stats.PerNamespace, nss)
	}
	e.metrics.Size(stats.Entries, stats.Bytes)
	return stats
}

// Namespaces returns a copy of the content namespace set in scan order.
func (e *Engine) Namespaces() []string {
	out := make([]string, len(e.spaces))
	copy(out, e.spaces)
	return out
}

// ---- preferences ----

// PutPreference stores a raw value in the preference namespace. Unlike
// content writes, failures propagate: preferences are the system of
// record for the quota governor, not re-fetchable cache content.
func (e *Engine) PutPreference(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Put(NamespacePrefs, key, value)
}

// GetPreference returns the raw preference value and a presence flag.
func (e *Engine) GetPreference(key string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, err := e.store.Get(NamespacePrefs, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			level.Warn(e.logger).Log("msg", "preference read failed", "key", key, "err", err)
		}
		return nil, false
	}
	return v, true
}

// DeletePreference removes a preference; deleting an absent key is a no-op.
func (e *Engine) DeletePreference(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Delete(NamespacePrefs, key)
}

// PreferenceKeys lists all preference keys; order follows the backend.
func (e *Engine) PreferenceKeys() ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Keys(NamespacePrefs)
}

// ---- helpers ----

// dropLocked deletes one entry and reports the eviction. Callers must hold
// the write lock. Returns false if the delete failed (the entry stays and
// is not counted as evicted).
func (e *Engine) dropLocked(namespace, key string, reason EvictReason) bool {
	if err := e.store.Delete(namespace, key); err != nil {
		level.Warn(e.logger).Log("msg", "cache delete failed", "namespace", namespace, "key", key, "err", err)
		return false
	}
	if reason == EvictGarbage {
		level.Warn(e.logger).Log("msg", "dropped undecodable cache entry", "namespace", namespace, "key", key)
	}
	e.metrics.Evict(namespace, reason)
	return true
}

// clearLocked deletes every key in one namespace. Callers must hold the
// write lock.
func (e *Engine) clearLocked(namespace string) {
	keys, err := e.store.Keys(namespace)
	if err != nil {
		level.Warn(e.logger).Log("msg", "cache scan failed", "namespace", namespace, "err", err)
		return
	}
	for _, k := range keys {
		if err := e.store.Delete(namespace, k); err != nil {
			level.Warn(e.logger).Log("msg", "cache delete failed", "namespace", namespace, "key", k, "err", err)
		}
	}
}

// now returns the current time in unix nanoseconds, preferring the
// configured Clock for deterministic tests.
func (e *Engine) now() int64 {
	if e.clock != nil {
		return e.clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}
