package remote

import (
	"fmt"
	"time"

	"github.com/thebanglabrief/thebanglabrief/internal/util"
)

// Resource kinds, used for quota accounting and metrics labels.
const (
	KindVideo   = "video"
	KindChannel = "channel"
	KindList    = "list"
)

// VideoSummary is the per-video payload the app renders in briefs.
type VideoSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ChannelID    string    `json:"channelId"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
	DurationSec  int64     `json:"durationSec"`
	Views        int64     `json:"views"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
}

// ChannelStats is the per-channel payload used to enrich feed items.
type ChannelStats struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subscribers int64  `json:"subscribers"`
	VideoCount  int64  `json:"videoCount"`
	Views       int64  `json:"views"`
}

// ListParams selects a page of videos. Every field affects the result and
// therefore the cache key.
type ListParams struct {
	Query      string
	ChannelID  string
	Order      string
	MaxResults int
	PageToken  string
}

// cacheKey digests the canonicalized parameters into a fixed-width key.
func (p ListParams) cacheKey() string {
	canonical := fmt.Sprintf("ch=%s&max=%d&order=%s&page=%s&q=%s",
		p.ChannelID, p.MaxResults, p.Order, p.PageToken, p.Query)
	return fmt.Sprintf("%016x", util.Sum64String(canonical))
}

// VideoList is one page of results.
type VideoList struct {
	Items         []VideoSummary `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
	TotalResults  int64          `json:"totalResults"`
}

// Source tells where a result came from.
type Source int

const (
	// SourceCache: served from the local cache, no quota spent.
	SourceCache Source = iota
	// SourceRemote: fetched from the remote this call (or coalesced into
	// a concurrent fetch).
	SourceRemote
)

// String returns the label used for logs.
func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Result pairs a value with its provenance.
type Result[T any] struct {
	Value  T
	Source Source
}

// FeedItem is one enriched row of the composite feed. Channel is nil when
// enrichment for this item was denied by quota or failed in transport.
type FeedItem struct {
	Video   VideoSummary
	Channel *ChannelStats
}

// FeedResult is the outcome of the composite "list then enrich" flow.
// A quota denial mid-enrichment is a partial success: Items carries
// whatever was assembled, Complete is false and Denied records the
// denial. Transport failures on single items leave holes without
// affecting Complete.
type FeedResult struct {
	Items         []FeedItem
	NextPageToken string
	Complete      bool
	Denied        *QuotaError
}
