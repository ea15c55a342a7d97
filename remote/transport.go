package remote

import "context"

// Transport performs the actual remote API calls. Implementations return
// parsed domain objects on success and *TransportError (or a bare context
// error) on failure; they never consult the cache or the quota, which are
// the Client's concern.
type Transport interface {
	FetchVideo(ctx context.Context, id string) (*VideoSummary, error)
	FetchChannelStats(ctx context.Context, id string) (*ChannelStats, error)
	FetchVideoList(ctx context.Context, params ListParams) (*VideoList, error)
}
