package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thebanglabrief/thebanglabrief/cache"
	"github.com/thebanglabrief/thebanglabrief/store/memorydb"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64 { return f.t }

// newExpiringEngine seeds an engine with one entry a minute from
// expiry and two immortal ones whose envelopes total 47 bytes.
func newExpiringEngine(t *testing.T) (*cache.Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Now().UnixNano()}
	e := cache.New(cache.Options{Store: memorydb.New(), Clock: clk})

	require.NoError(t, e.Put(cache.NamespaceGeneral, "a", []byte("aaaaa"), time.Minute))
	require.NoError(t, e.Put(cache.NamespaceGeneral, "b", []byte("bbbbbbbbbb"), 0))
	clk.t += int64(time.Second)
	require.NoError(t, e.Put(cache.NamespaceGeneral, "c", []byte("ccc"), 0))
	return e, clk
}

// fakeCache counts sweep calls and hands back scripted removal counts.
type fakeCache struct {
	mu       sync.Mutex
	expired  int
	evicted  int
	passes   int
	maxBytes int64
}

func (f *fakeCache) EvictExpired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes++
	return f.expired
}

func (f *fakeCache) EvictBySize(maxBytes int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxBytes = maxBytes
	return f.evicted
}

func (f *fakeCache) Stats() cache.Statistics {
	return cache.Statistics{Entries: 1, Bytes: 17}
}

func (f *fakeCache) passCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passes
}

func TestSweeper_Sweep(t *testing.T) {
	t.Parallel()

	fc := &fakeCache{expired: 3, evicted: 2}
	s := New(Options{Cache: fc, Interval: time.Hour, MaxBytes: 1 << 20})

	expired, evicted := s.Sweep()
	require.Equal(t, 3, expired)
	require.Equal(t, 2, evicted)
	require.Equal(t, int64(1<<20), fc.maxBytes)
}

func TestSweeper_RunTicksUntilCanceled(t *testing.T) {
	t.Parallel()

	fc := &fakeCache{}
	s := New(Options{Cache: fc, Interval: 5 * time.Millisecond, MaxBytes: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	// One immediate pass plus at least one tick.
	require.Eventually(t, func() bool { return fc.passCount() >= 2 },
		time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSweeper_RealEngine(t *testing.T) {
	t.Parallel()

	e, clk := newExpiringEngine(t)
	s := New(Options{Cache: e, Interval: time.Hour, MaxBytes: 40})

	clk.t += int64(2 * time.Minute)
	expired, evicted := s.Sweep()
	require.Equal(t, 1, expired)
	require.Equal(t, 1, evicted)

	st := e.Stats()
	require.Equal(t, 1, st.Entries)
	require.LessOrEqual(t, st.Bytes, int64(40))
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { New(Options{Interval: time.Hour, MaxBytes: 1}) })
	require.Panics(t, func() { New(Options{Cache: &fakeCache{}, MaxBytes: 1}) })
	require.Panics(t, func() { New(Options{Cache: &fakeCache{}, Interval: time.Hour}) })
}
