package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/thebanglabrief/thebanglabrief/cache"
	"github.com/thebanglabrief/thebanglabrief/internal/singleflight"
	"github.com/thebanglabrief/thebanglabrief/quota"
)

// ErrEmptyID is returned when a resource id is empty.
var ErrEmptyID = errors.New("remote: empty resource id")

// Costs is the per-kind price table in quota units.
type Costs struct {
	Video   int64
	Channel int64
	List    int64
}

// DefaultCosts mirrors the provider's price sheet: list queries are two
// orders of magnitude above single-resource reads.
func DefaultCosts() Costs { return Costs{Video: 1, Channel: 1, List: 100} }

// TTLs is the per-kind cache lifetime table.
type TTLs struct {
	Videos   time.Duration
	Channels time.Duration
	Lists    time.Duration
}

// DefaultTTLs: view counts drift slowly, channel stats slower, list pages
// go stale fastest.
func DefaultTTLs() TTLs {
	return TTLs{Videos: 6 * time.Hour, Channels: 12 * time.Hour, Lists: time.Hour}
}

// Options configures the Client. Engine, Governor and Transport are
// required; everything else has a sane default applied in New().
type Options struct {
	Engine    *cache.Engine
	Governor  *quota.Governor
	Transport Transport

	// Costs and TTLs default to DefaultCosts()/DefaultTTLs() when left
	// as zero values.
	Costs Costs
	TTLs  TTLs

	// Pacer, when set, rate-limits dispatches after admission. A wait
	// cut short by ctx is a pre-flight failure: nothing is consumed.
	Pacer *rate.Limiter

	// FeedConcurrency bounds the enrichment fan-out. Default 4.
	FeedConcurrency int

	Logger log.Logger
}

// Client runs the fetch pipeline. All methods are safe for concurrent use.
type Client struct {
	engine    *cache.Engine
	governor  *quota.Governor
	transport Transport
	costs     Costs
	ttls      TTLs
	pacer     *rate.Limiter
	feedConc  int
	logger    log.Logger

	videoFlight   singleflight.Group[string, flightVal[*VideoSummary]]
	channelFlight singleflight.Group[string, flightVal[*ChannelStats]]
	listFlight    singleflight.Group[string, flightVal[*VideoList]]
}

// New constructs a Client. It panics on missing collaborators and on
// negative costs or TTLs; these are programmer errors, not runtime
// conditions.
func New(opt Options) *Client {
	if opt.Engine == nil {
		panic("remote: Engine must not be nil")
	}
	if opt.Governor == nil {
		panic("remote: Governor must not be nil")
	}
	if opt.Transport == nil {
		panic("remote: Transport must not be nil")
	}
	if opt.Costs == (Costs{}) {
		opt.Costs = DefaultCosts()
	}
	if opt.Costs.Video < 0 || opt.Costs.Channel < 0 || opt.Costs.List < 0 {
		panic("remote: negative cost")
	}
	if opt.TTLs == (TTLs{}) {
		opt.TTLs = DefaultTTLs()
	}
	if opt.TTLs.Videos < 0 || opt.TTLs.Channels < 0 || opt.TTLs.Lists < 0 {
		panic("remote: negative ttl")
	}
	if opt.FeedConcurrency <= 0 {
		opt.FeedConcurrency = 4
	}
	if opt.Logger == nil {
		opt.Logger = log.NewNopLogger()
	}
	return &Client{
		engine:    opt.Engine,
		governor:  opt.Governor,
		transport: opt.Transport,
		costs:     opt.Costs,
		ttls:      opt.TTLs,
		pacer:     opt.Pacer,
		feedConc:  opt.FeedConcurrency,
		logger:    opt.Logger,
	}
}

// Video returns one video summary, from cache when fresh.
func (c *Client) Video(ctx context.Context, id string) (Result[*VideoSummary], error) {
	if id == "" {
		return Result[*VideoSummary]{}, ErrEmptyID
	}
	return fetchCached(ctx, c, &c.videoFlight, cache.NamespaceVideos, id, KindVideo, c.costs.Video, c.ttls.Videos,
		func(ctx context.Context) (*VideoSummary, error) { return c.transport.FetchVideo(ctx, id) })
}

// ChannelStats returns one channel's statistics, from cache when fresh.
func (c *Client) ChannelStats(ctx context.Context, id string) (Result[*ChannelStats], error) {
	if id == "" {
		return Result[*ChannelStats]{}, ErrEmptyID
	}
	return fetchCached(ctx, c, &c.channelFlight, cache.NamespaceChannels, id, KindChannel, c.costs.Channel, c.ttls.Channels,
		func(ctx context.Context) (*ChannelStats, error) { return c.transport.FetchChannelStats(ctx, id) })
}

// VideoList returns one page of videos, from cache when an identical
// query (all parameters equal) is still fresh.
func (c *Client) VideoList(ctx context.Context, params ListParams) (Result[*VideoList], error) {
	return fetchCached(ctx, c, &c.listFlight, cache.NamespaceLists, params.cacheKey(), KindList, c.costs.List, c.ttls.Lists,
		func(ctx context.Context) (*VideoList, error) { return c.transport.FetchVideoList(ctx, params) })
}

// Feed runs the composite flow: fetch a list page, then enrich each item
// with its channel's statistics. Each enrichment is admitted and consumed
// independently; a quota denial stops further enrichment and yields a
// partial FeedResult rather than an error. Transport failures on single
// items leave those items unenriched. Channel fetches are deduplicated
// per page and fan out with bounded concurrency.
func (c *Client) Feed(ctx context.Context, params ListParams) (*FeedResult, error) {
	listRes, err := c.VideoList(ctx, params)
	if err != nil {
		return nil, err
	}
	list := listRes.Value

	items := make([]FeedItem, len(list.Items))
	slots := make(map[string][]int, len(list.Items)) // channel id -> item indexes
	order := make([]string, 0, len(list.Items))
	for i, v := range list.Items {
		items[i].Video = v
		if v.ChannelID == "" {
			continue
		}
		if _, seen := slots[v.ChannelID]; !seen {
			order = append(order, v.ChannelID)
		}
		slots[v.ChannelID] = append(slots[v.ChannelID], i)
	}

	var (
		mu      sync.Mutex
		denied  *QuotaError
		fetched = make(map[string]*ChannelStats, len(order))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.feedConc)
	for _, id := range order {
		eg.Go(func() error {
			res, err := c.ChannelStats(egCtx, id)
			if err != nil {
				var qe *QuotaError
				if errors.As(err, &qe) {
					mu.Lock()
					if denied == nil {
						denied = qe
					}
					mu.Unlock()
					// Cancel the group; fetches not yet dispatched stop
					// pre-flight and stay unbilled.
					return err
				}
				var te *TransportError
				if errors.As(err, &te) {
					level.Debug(c.logger).Log("msg", "feed enrichment failed", "channel", id, "category", te.Category, "err", err)
					return nil // hole in the feed, not a failure
				}
				return err
			}
			mu.Lock()
			fetched[id] = res.Value
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		var qe *QuotaError
		if !errors.As(err, &qe) {
			return nil, err
		}
	}

	for id, cs := range fetched {
		for _, i := range slots[id] {
			items[i].Channel = cs
		}
	}
	return &FeedResult{
		Items:         items,
		NextPageToken: list.NextPageToken,
		Complete:      denied == nil,
		Denied:        denied,
	}, nil
}

// RemainingQuota returns today's remaining budget.
func (c *Client) RemainingQuota() int64 { return c.governor.Remaining() }

// QuotaState reports whether any budget is left today.
func (c *Client) QuotaState() quota.State { return c.governor.State() }

// CacheInfo returns a snapshot of cache statistics.
func (c *Client) CacheInfo() cache.Statistics { return c.engine.Stats() }

// ---- fetch pipeline ----

// flightVal carries a fetched value through singleflight together with
// whether it was resolved from cache inside the flight (a racer stored it
// between our cache check and the flight start).
type flightVal[T any] struct {
	val    T
	cached bool
}

// fetchCached is the pipeline every read runs: cache check, singleflight,
// admission, optional pacing, transport call, consumption, cache write.
// Quota is consumed when the remote answered (success or billed failure)
// and never before dispatch.
func fetchCached[T any](ctx context.Context, c *Client, g *singleflight.Group[string, flightVal[T]],
	ns, key, kind string, cost int64, ttl time.Duration, call func(context.Context) (T, error)) (Result[T], error) {

	if v, ok := cacheLookup[T](c, ns, key); ok {
		return Result[T]{Value: v, Source: SourceCache}, nil
	}

	fv, err := g.Do(ctx, key, func() (flightVal[T], error) {
		// Double-check after winning the flight: a concurrent fetch may
		// have stored the value while we waited.
		if v, ok := cacheLookup[T](c, ns, key); ok {
			return flightVal[T]{val: v, cached: true}, nil
		}
		if !c.governor.AdmitKind(kind, cost) {
			return flightVal[T]{}, &QuotaError{Kind: kind, Need: cost, Remaining: c.governor.Remaining()}
		}
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return flightVal[T]{}, err
			}
		}
		v, err := call(ctx)
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) && te.Billed() {
				c.governor.ConsumeKind(kind, cost)
			}
			return flightVal[T]{}, err
		}
		c.governor.ConsumeKind(kind, cost)
		cacheStore(c, ns, key, v, ttl)
		return flightVal[T]{val: v}, nil
	})
	if err != nil {
		var zero Result[T]
		return zero, err
	}
	src := SourceRemote
	if fv.cached {
		src = SourceCache
	}
	return Result[T]{Value: fv.val, Source: src}, nil
}

// cacheLookup reads and decodes a cached payload. A payload that no
// longer decodes is dropped and reads as a miss.
func cacheLookup[T any](c *Client, ns, key string) (T, bool) {
	var v T
	raw, ok := c.engine.Get(ns, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		level.Warn(c.logger).Log("msg", "cached payload undecodable, dropping", "namespace", ns, "key", key, "err", err)
		c.engine.Remove(ns, key)
		var zero T
		return zero, false
	}
	return v, true
}

// cacheStore encodes and writes a payload. Failures are logged; the value
// was already fetched and is returned to the caller either way.
func cacheStore[T any](c *Client, ns, key string, v T, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		level.Warn(c.logger).Log("msg", "cache encode failed", "namespace", ns, "key", key, "err", err)
		return
	}
	if err := c.engine.Put(ns, key, raw, ttl); err != nil {
		level.Warn(c.logger).Log("msg", "cache write rejected", "namespace", ns, "key", key, "err", err)
	}
}
