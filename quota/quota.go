package quota

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	dayLayout     = "2006-01-02"
	counterPrefix = "quota/units/"
	usagePrefix   = "usage/"

	// DefaultRetentionDays is how long stale day counters are kept before
	// the rollover purge removes them.
	DefaultRetentionDays = 7

	// DefaultUsageTTL bounds per-kind usage documents; the cache sweep
	// deletes them once they age out.
	DefaultUsageTTL = 30 * 24 * time.Hour

	// DefaultUsageNamespace is the cache namespace usage documents go to.
	DefaultUsageNamespace = "metrics"
)

// State describes the budget at a point in time.
type State int

const (
	// Available: at least one unit of budget is left today.
	Available State = iota
	// Exhausted: today's consumption reached or passed the daily limit.
	Exhausted
)

// String returns the label used for logs and the CLI.
func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// PreferenceStore is the persistence surface the governor needs; the cache
// engine's preference accessors satisfy it.
type PreferenceStore interface {
	PutPreference(key string, value []byte) error
	GetPreference(key string) ([]byte, bool)
	DeletePreference(key string) error
	PreferenceKeys() ([]string, error)
}

// UsageSink receives per-kind usage documents; the cache engine's content
// surface satisfies it. Usage accounting is best-effort and optional.
type UsageSink interface {
	Put(namespace, key string, payload []byte, ttl time.Duration) error
	Get(namespace, key string) ([]byte, bool)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the governor. Prefs and DailyLimit are required;
// everything else has a sane default applied in New().
type Options struct {
	// Prefs persists the day counter across restarts.
	Prefs PreferenceStore

	// DailyLimit is the unit budget per local calendar day. Must be > 0.
	DailyLimit int64

	// Usage, when set, receives per-day per-kind usage documents
	// (JSON map kind -> units) under usage/<date> in UsageNamespace.
	Usage          UsageSink
	UsageNamespace string        // default DefaultUsageNamespace
	UsageTTL       time.Duration // default DefaultUsageTTL

	// RetentionDays is how many days of counters survive the rollover
	// purge. Default DefaultRetentionDays.
	RetentionDays int

	// Observability
	Logger  log.Logger
	Metrics Metrics

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock
}

// Governor is the daily budget gate. All methods are safe for concurrent
// use; one mutex serializes rollover, admission checks and consumption.
type Governor struct {
	mu sync.Mutex

	prefs     PreferenceStore
	usage     UsageSink
	usageNS   string
	usageTTL  time.Duration
	limit     int64
	retention int

	logger  log.Logger
	metrics Metrics
	clock   Clock

	day  string // current date key; empty until the first access
	used int64  // units consumed for day
}

// New constructs a Governor. It does no I/O: the counter loads lazily on
// the first access, which also performs the initial day rollover.
// New panics on a nil Prefs or non-positive DailyLimit; both are
// programmer errors, not runtime conditions.
func New(opt Options) *Governor {
	if opt.Prefs == nil {
		panic("quota: Prefs must not be nil")
	}
	if opt.DailyLimit <= 0 {
		panic("quota: DailyLimit must be > 0")
	}
	if opt.UsageNamespace == "" {
		opt.UsageNamespace = DefaultUsageNamespace
	}
	if opt.UsageTTL <= 0 {
		opt.UsageTTL = DefaultUsageTTL
	}
	if opt.RetentionDays <= 0 {
		opt.RetentionDays = DefaultRetentionDays
	}
	if opt.Logger == nil {
		opt.Logger = log.NewNopLogger()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	return &Governor{
		prefs:     opt.Prefs,
		usage:     opt.Usage,
		usageNS:   opt.UsageNamespace,
		usageTTL:  opt.UsageTTL,
		limit:     opt.DailyLimit,
		retention: opt.RetentionDays,
		logger:    opt.Logger,
		metrics:   opt.Metrics,
		clock:     opt.Clock,
	}
}

// Admit reports whether a call of the given cost fits today's remaining
// budget. It is a pure query: no state changes, no charge. A cost larger
// than the daily limit is never admitted. Negative cost panics.
func (g *Governor) Admit(cost int64) bool {
	return g.admit("", cost, false)
}

// AdmitKind is Admit with a resource kind attached for observability;
// denials feed the Denied metric.
func (g *Governor) AdmitKind(kind string, cost int64) bool {
	return g.admit(kind, cost, true)
}

func (g *Governor) admit(kind string, cost int64, instrument bool) bool {
	if cost < 0 {
		panic("quota: negative cost")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()
	ok := g.used+cost <= g.limit
	if !ok && instrument {
		g.metrics.Denied(kind)
	}
	return ok
}

// Consume charges cost units against today's budget and persists the
// counter. Callers invoke it only after the remote call actually executed;
// Consume never refuses, even past the limit. Negative cost panics.
func (g *Governor) Consume(cost int64) {
	g.ConsumeKind("", cost)
}

// ConsumeKind is Consume with a resource kind attached; when a usage sink
// is configured the per-day usage document is updated as well.
func (g *Governor) ConsumeKind(kind string, cost int64) {
	if cost < 0 {
		panic("quota: negative cost")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()
	g.used += cost
	g.persistLocked()
	g.metrics.Consumed(kind, cost)
	g.metrics.Remaining(g.remainingLocked())
	if g.usage != nil && kind != "" {
		g.recordUsageLocked(kind, cost)
	}
}

// Remaining returns today's remaining budget, clamped at zero (the
// overshoot tolerance can push consumption past the limit).
func (g *Governor) Remaining() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()
	return g.remainingLocked()
}

// Used returns the units consumed so far today.
func (g *Governor) Used() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()
	return g.used
}

// Limit returns the configured daily limit.
func (g *Governor) Limit() int64 { return g.limit }

// Today returns the current day key (local calendar date).
func (g *Governor) Today() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()
	return g.day
}

// State reports whether any budget is left today.
func (g *Governor) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()
	if g.used >= g.limit {
		return Exhausted
	}
	return Available
}

// ResetToday zeroes today's counter and persists the reset. Intended for
// operator use (the CLI), not for application flows.
func (g *Governor) ResetToday() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()
	g.used = 0
	g.persistLocked()
	g.metrics.Remaining(g.remainingLocked())
}

// ---- internals, all called with g.mu held ----

// rollLocked makes the governor current: on the first access of a new day
// it loads (or initializes) that day's counter and purges counters older
// than the retention window.
func (g *Governor) rollLocked() {
	day := g.dateKey()
	if day == g.day {
		return
	}
	g.day = day
	g.used = g.loadLocked(day)
	g.purgeLocked()
	g.metrics.Remaining(g.remainingLocked())
}

// loadLocked reads a day's persisted counter. An absent or corrupt value
// starts the day at zero; corruption is logged.
func (g *Governor) loadLocked(day string) int64 {
	raw, ok := g.prefs.GetPreference(counterPrefix + day)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || n < 0 {
		level.Warn(g.logger).Log("msg", "corrupt quota counter, starting fresh", "day", day, "value", string(raw))
		return 0
	}
	return n
}

// persistLocked writes today's counter as decimal ASCII. Failures are
// logged; the in-memory counter stays authoritative for the session.
func (g *Governor) persistLocked() {
	key := counterPrefix + g.day
	if err := g.prefs.PutPreference(key, []byte(strconv.FormatInt(g.used, 10))); err != nil {
		level.Warn(g.logger).Log("msg", "quota counter persist failed", "day", g.day, "err", err)
	}
}

// purgeLocked deletes day counters older than the retention window.
// ISO date keys compare lexicographically, so no parsing is needed.
func (g *Governor) purgeLocked() {
	keys, err := g.prefs.PreferenceKeys()
	if err != nil {
		level.Warn(g.logger).Log("msg", "quota purge scan failed", "err", err)
		return
	}
	cutoff := g.now().AddDate(0, 0, -g.retention).Format(dayLayout)
	for _, k := range keys {
		day, ok := strings.CutPrefix(k, counterPrefix)
		if !ok || day >= cutoff {
			continue
		}
		if err := g.prefs.DeletePreference(k); err != nil {
			level.Warn(g.logger).Log("msg", "quota purge delete failed", "key", k, "err", err)
		}
	}
}

// recordUsageLocked folds cost into today's per-kind usage document.
// Best-effort: decode and write failures never affect the counter.
func (g *Governor) recordUsageLocked(kind string, cost int64) {
	key := usagePrefix + g.day
	doc := map[string]int64{}
	if raw, ok := g.usage.Get(g.usageNS, key); ok {
		if err := json.Unmarshal(raw, &doc); err != nil {
			doc = map[string]int64{}
		}
	}
	doc[kind] += cost
	raw, _ := json.Marshal(doc)
	if err := g.usage.Put(g.usageNS, key, raw, g.usageTTL); err != nil {
		level.Warn(g.logger).Log("msg", "usage document write failed", "day", g.day, "err", err)
	}
}

func (g *Governor) remainingLocked() int64 {
	if r := g.limit - g.used; r > 0 {
		return r
	}
	return 0
}

// dateKey formats the current local calendar date.
func (g *Governor) dateKey() string {
	return g.now().Format(dayLayout)
}

// now returns the current local time, preferring the configured Clock.
func (g *Governor) now() time.Time {
	if g.clock != nil {
		return time.Unix(0, g.clock.NowUnixNano())
	}
	return time.Now()
}
