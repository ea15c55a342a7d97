package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/thebanglabrief/thebanglabrief/cache"
	"github.com/thebanglabrief/thebanglabrief/quota"
	"github.com/thebanglabrief/thebanglabrief/store/memorydb"
)

// staticClock pins the governor's day so a midnight rollover cannot
// disturb budget assertions.
type staticClock int64

func (c staticClock) NowUnixNano() int64 { return int64(c) }

type fakeTransport struct {
	mu           sync.Mutex
	videoCalls   int
	channelCalls int
	listCalls    int

	delay   time.Duration
	video   func(id string) (*VideoSummary, error)
	channel func(id string) (*ChannelStats, error)
	list    func(p ListParams) (*VideoList, error)
}

func (f *fakeTransport) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) FetchVideo(ctx context.Context, id string) (*VideoSummary, error) {
	f.mu.Lock()
	f.videoCalls++
	fn := f.video
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(id)
	}
	return &VideoSummary{ID: id, Title: "video " + id, ChannelID: "ch-" + id}, nil
}

func (f *fakeTransport) FetchChannelStats(ctx context.Context, id string) (*ChannelStats, error) {
	f.mu.Lock()
	f.channelCalls++
	fn := f.channel
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(id)
	}
	return &ChannelStats{ID: id, Title: "channel " + id, Subscribers: 1000}, nil
}

func (f *fakeTransport) FetchVideoList(ctx context.Context, p ListParams) (*VideoList, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.list
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(p)
	}
	return &VideoList{TotalResults: 0}, nil
}

func (f *fakeTransport) calls() (video, channel, list int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoCalls, f.channelCalls, f.listCalls
}

func listOf(items ...VideoSummary) func(ListParams) (*VideoList, error) {
	return func(ListParams) (*VideoList, error) {
		return &VideoList{Items: items, TotalResults: int64(len(items))}, nil
	}
}

type harness struct {
	engine *cache.Engine
	gov    *quota.Governor
	tr     *fakeTransport
	client *Client
}

func newHarness(t *testing.T, limit int64, mod func(*Options)) *harness {
	t.Helper()
	db := memorydb.New()
	t.Cleanup(func() { _ = db.Close() })

	engine := cache.New(cache.Options{Store: db})
	clk := staticClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.Local).UnixNano())
	gov := quota.New(quota.Options{Prefs: engine, DailyLimit: limit, Usage: engine, Clock: clk})

	tr := &fakeTransport{}
	opt := Options{Engine: engine, Governor: gov, Transport: tr}
	if mod != nil {
		mod(&opt)
	}
	return &harness{engine: engine, gov: gov, tr: tr, client: New(opt)}
}

func TestClient_VideoMissThenHit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)

	res, err := h.client.Video(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, SourceRemote, res.Source)
	require.Equal(t, "v1", res.Value.ID)
	require.Equal(t, int64(999), h.gov.Remaining())

	res2, err := h.client.Video(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, SourceCache, res2.Source)
	require.Equal(t, res.Value, res2.Value)
	require.Equal(t, int64(999), h.gov.Remaining(), "cache hits are free")

	v, _, _ := h.tr.calls()
	require.Equal(t, 1, v)
}

// An exhausted budget denies before the transport is touched; nothing is
// consumed and the denial carries kind/need/remaining.
func TestClient_QuotaDeniedBeforeTransport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 100, nil)
	h.gov.Consume(100)

	_, err := h.client.Video(ctx, "v1")
	require.ErrorIs(t, err, ErrQuotaExhausted)
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	require.Equal(t, KindVideo, qe.Kind)
	require.Equal(t, int64(1), qe.Need)
	require.Equal(t, int64(0), qe.Remaining)

	v, c, l := h.tr.calls()
	require.Zero(t, v+c+l, "denied calls must never reach the transport")
	require.Equal(t, int64(100), h.gov.Used(), "denial consumes nothing")
}

// Cached content keeps serving after the budget runs out.
func TestClient_CacheHitWithExhaustedQuota(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)

	_, err := h.client.Video(ctx, "v1")
	require.NoError(t, err)
	h.gov.Consume(h.gov.Remaining())
	require.Equal(t, quota.Exhausted, h.gov.State())

	res, err := h.client.Video(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, SourceCache, res.Source)
}

// Server errors are billed: the remote answered. The response is not
// cached, so a retry pays again.
func TestClient_BilledFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)
	h.tr.video = func(string) (*VideoSummary, error) {
		return nil, &TransportError{Category: RemoteUnavailable, Status: 503, Err: errors.New("upstream down")}
	}

	_, err := h.client.Video(ctx, "v1")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, RemoteUnavailable, te.Category)
	require.Equal(t, int64(1), h.gov.Used())

	_, err = h.client.Video(ctx, "v1")
	require.Error(t, err)
	v, _, _ := h.tr.calls()
	require.Equal(t, 2, v, "failures must not be cached")
	require.Equal(t, int64(2), h.gov.Used())
}

// Timeouts and unreachable remotes are free: the provider never saw the
// request.
func TestClient_UnbilledFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)

	h.tr.video = func(string) (*VideoSummary, error) {
		return nil, &TransportError{Category: Timeout, Err: context.DeadlineExceeded}
	}
	_, err := h.client.Video(ctx, "v1")
	require.Error(t, err)

	h.tr.video = func(string) (*VideoSummary, error) {
		return nil, &TransportError{Category: NoConnectivity, Err: errors.New("dial tcp: network is unreachable")}
	}
	_, err = h.client.Video(ctx, "v1")
	require.Error(t, err)

	require.Equal(t, int64(0), h.gov.Used())
}

// A response that arrived but did not parse is billed like any answered
// call, and nothing is cached.
func TestClient_MalformedBilled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)
	h.tr.video = func(string) (*VideoSummary, error) {
		return nil, &TransportError{Category: Malformed, Err: errors.New("unexpected end of JSON input")}
	}

	_, err := h.client.Video(ctx, "v1")
	require.Error(t, err)
	require.Equal(t, int64(1), h.gov.Used())

	_, err = h.client.Video(ctx, "v1")
	require.Error(t, err)
	v, _, _ := h.tr.calls()
	require.Equal(t, 2, v)
}

// A cached payload that no longer decodes is dropped and refetched.
func TestClient_DroppedGarbagePayload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)
	require.NoError(t, h.engine.Put(cache.NamespaceVideos, "v1", []byte("{not json"), 0))

	res, err := h.client.Video(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, SourceRemote, res.Source)

	res2, err := h.client.Video(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, SourceCache, res2.Source, "refetched payload must be cached")
}

// Concurrent fetches of the same id share one transport call and one
// quota charge.
func TestClient_SingleflightSharesOneCharge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)
	h.tr.delay = 20 * time.Millisecond

	const n = 16
	results := make([]Result[*VideoSummary], n)
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			res, err := h.client.Video(ctx, "same")
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	v, _, _ := h.tr.calls()
	require.Equal(t, 1, v, "coalesced fetch dispatches once")
	require.Equal(t, int64(1), h.gov.Used(), "coalesced fetch charges once")
	for _, res := range results {
		require.NotNil(t, res.Value)
		require.Equal(t, "same", res.Value.ID)
	}
}

// A follower whose context ends stops waiting; the leader still finishes,
// charges once and fills the cache.
func TestClient_FollowerCancellation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1000, nil)
	h.tr.delay = 50 * time.Millisecond

	leaderDone := make(chan error, 1)
	go func() {
		_, err := h.client.Video(context.Background(), "v1")
		leaderDone <- err
	}()
	time.Sleep(20 * time.Millisecond) // let the leader take the flight

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.client.Video(ctx, "v1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, <-leaderDone)
	require.Equal(t, int64(1), h.gov.Used())

	res, err := h.client.Video(context.Background(), "v1")
	require.NoError(t, err)
	require.Equal(t, SourceCache, res.Source)
}

// Every list parameter participates in the cache key.
func TestClient_ListParamsKeying(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)
	h.tr.list = func(p ListParams) (*VideoList, error) {
		return &VideoList{TotalResults: int64(p.MaxResults)}, nil
	}

	p1 := ListParams{Query: "bangla news", MaxResults: 10}
	p2 := ListParams{Query: "bangla news", MaxResults: 20}

	res1, err := h.client.VideoList(ctx, p1)
	require.NoError(t, err)
	require.Equal(t, int64(10), res1.Value.TotalResults)

	res2, err := h.client.VideoList(ctx, p2)
	require.NoError(t, err)
	require.Equal(t, int64(20), res2.Value.TotalResults)

	res1b, err := h.client.VideoList(ctx, p1)
	require.NoError(t, err)
	require.Equal(t, SourceCache, res1b.Source)
	require.Equal(t, int64(10), res1b.Value.TotalResults)

	_, _, l := h.tr.calls()
	require.Equal(t, 2, l)
	require.Equal(t, int64(200), h.gov.Used())
}

// The passthrough surface: budget and cache snapshots.
func TestClient_Snapshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 500, nil)

	require.Equal(t, int64(500), h.client.RemainingQuota())
	require.Equal(t, quota.Available, h.client.QuotaState())

	_, err := h.client.Video(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, int64(499), h.client.RemainingQuota())
	require.Equal(t, 1, h.client.CacheInfo().Entries)
}

func TestClient_EmptyID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 100, nil)

	_, err := h.client.Video(ctx, "")
	require.ErrorIs(t, err, ErrEmptyID)
	_, err = h.client.ChannelStats(ctx, "")
	require.ErrorIs(t, err, ErrEmptyID)
	require.Equal(t, int64(0), h.gov.Used())
}

func TestClient_FeedComplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)
	h.tr.list = func(ListParams) (*VideoList, error) {
		return &VideoList{
			Items: []VideoSummary{
				{ID: "v1", ChannelID: "chA"},
				{ID: "v2", ChannelID: "chA"},
				{ID: "v3", ChannelID: "chB"},
				{ID: "v4"}, // no channel: stays unenriched, costs nothing
			},
			NextPageToken: "tok2",
			TotalResults:  4,
		}, nil
	}

	feed, err := h.client.Feed(ctx, ListParams{Query: "bangla"})
	require.NoError(t, err)
	require.True(t, feed.Complete)
	require.Nil(t, feed.Denied)
	require.Equal(t, "tok2", feed.NextPageToken)
	require.Len(t, feed.Items, 4)

	require.Equal(t, "chA", feed.Items[0].Channel.ID)
	require.Equal(t, "chA", feed.Items[1].Channel.ID)
	require.Equal(t, "chB", feed.Items[2].Channel.ID)
	require.Nil(t, feed.Items[3].Channel)

	_, c, _ := h.tr.calls()
	require.Equal(t, 2, c, "channel fetches are deduplicated per page")
	require.Equal(t, int64(100+2), h.gov.Used())
}

// Running out of budget mid-enrichment truncates the feed instead of
// failing it.
func TestClient_FeedQuotaTruncation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 101, func(o *Options) { o.FeedConcurrency = 1 })
	h.tr.list = func(ListParams) (*VideoList, error) {
		return &VideoList{Items: []VideoSummary{
			{ID: "v1", ChannelID: "chA"},
			{ID: "v2", ChannelID: "chB"},
		}}, nil
	}

	feed, err := h.client.Feed(ctx, ListParams{Query: "bangla"})
	require.NoError(t, err, "quota truncation is a partial success")
	require.False(t, feed.Complete)
	require.NotNil(t, feed.Denied)
	require.Equal(t, KindChannel, feed.Denied.Kind)
	require.ErrorIs(t, feed.Denied, ErrQuotaExhausted)

	require.NotNil(t, feed.Items[0].Channel, "first enrichment fits the budget")
	require.Nil(t, feed.Items[1].Channel, "second enrichment is denied")

	_, c, _ := h.tr.calls()
	require.Equal(t, 1, c)
	require.Equal(t, int64(101), h.gov.Used())
}

// A transport failure on one item leaves a hole without truncating the
// rest; answered failures still bill.
func TestClient_FeedTransportHole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 1000, nil)
	h.tr.list = func(ListParams) (*VideoList, error) {
		return &VideoList{Items: []VideoSummary{
			{ID: "v1", ChannelID: "chA"},
			{ID: "v2", ChannelID: "chB"},
		}}, nil
	}
	h.tr.channel = func(id string) (*ChannelStats, error) {
		if id == "chB" {
			return nil, &TransportError{Category: RemoteUnavailable, Status: 500}
		}
		return &ChannelStats{ID: id}, nil
	}

	feed, err := h.client.Feed(ctx, ListParams{})
	require.NoError(t, err)
	require.True(t, feed.Complete)
	require.Nil(t, feed.Denied)
	require.NotNil(t, feed.Items[0].Channel)
	require.Nil(t, feed.Items[1].Channel)
	require.Equal(t, int64(100+1+1), h.gov.Used(), "the failed fetch was answered, so it bills")
}

// When even the list step does not fit the budget, Feed fails with the
// denial; nothing reaches the transport.
func TestClient_FeedListDenied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, 50, nil)

	_, err := h.client.Feed(ctx, ListParams{Query: "bangla"})
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	require.Equal(t, KindList, qe.Kind)

	v, c, l := h.tr.calls()
	require.Zero(t, v+c+l)
	require.Equal(t, int64(0), h.gov.Used())
}

// The pacer sits after admission: a wait cut short by the deadline is a
// pre-flight failure and stays unbilled.
func TestClient_PacerPreflight(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1000, func(o *Options) {
		o.Pacer = rate.NewLimiter(rate.Every(time.Hour), 1)
	})

	_, err := h.client.Video(context.Background(), "a")
	require.NoError(t, err, "burst token covers the first call")
	require.Equal(t, int64(1), h.gov.Used())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.client.Video(ctx, "b")
	require.Error(t, err)
	require.Equal(t, int64(1), h.gov.Used(), "a paced-out call is never billed")

	v, _, _ := h.tr.calls()
	require.Equal(t, 1, v, "a paced-out call never dispatches")
}
