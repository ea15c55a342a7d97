// Package maintenance drives periodic cache upkeep.
package maintenance

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/thebanglabrief/thebanglabrief/cache"
)

// Cache is the subset of the cache engine a sweep drives.
type Cache interface {
	EvictExpired() int
	EvictBySize(maxBytes int64) int
	Stats() cache.Statistics
}

// Options configures a Sweeper.
type Options struct {
	// Cache is the engine to sweep. Required.
	Cache Cache

	// Interval between passes. Required.
	Interval time.Duration

	// MaxBytes is the size ceiling enforced by each pass. Required.
	MaxBytes int64

	// Logger for pass summaries. Defaults to a nop logger.
	Logger log.Logger
}

// Sweeper periodically drops expired entries and trims the cache back
// under its size ceiling. Sweeps are opportunistic: reads already drop
// expired entries lazily, the sweeper only reclaims space for entries
// nobody asks for anymore.
type Sweeper struct {
	cache    Cache
	interval time.Duration
	maxBytes int64
	logger   log.Logger
}

// New builds a Sweeper. It panics on a nil cache or non-positive
// interval or ceiling, as those are programmer errors.
func New(opt Options) *Sweeper {
	if opt.Cache == nil {
		panic("maintenance: Options.Cache is required")
	}
	if opt.Interval <= 0 {
		panic("maintenance: Options.Interval must be > 0")
	}
	if opt.MaxBytes <= 0 {
		panic("maintenance: Options.MaxBytes must be > 0")
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Sweeper{
		cache:    opt.Cache,
		interval: opt.Interval,
		maxBytes: opt.MaxBytes,
		logger:   logger,
	}
}

// Run performs one pass immediately, then one per interval, until ctx
// is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs a single expiry pass followed by a size pass and reports
// how many entries each removed.
func (s *Sweeper) Sweep() (expired, evicted int) {
	expired = s.cache.EvictExpired()
	evicted = s.cache.EvictBySize(s.maxBytes)
	if expired > 0 || evicted > 0 {
		st := s.cache.Stats()
		level.Info(s.logger).Log(
			"msg", "cache sweep",
			"expired", expired,
			"evicted", evicted,
			"entries", st.Entries,
			"bytes", st.Bytes,
		)
	}
	return expired, evicted
}
