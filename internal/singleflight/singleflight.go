// Package singleflight coalesces concurrent calls for the same key so the
// work runs at most once. The remote facade uses it to make simultaneous
// fetches of one resource share a single transport call and a single
// quota charge.
package singleflight

import (
	"context"
	"sync"
)

// Group deduplicates in-flight work per key. The zero value is ready to
// use; one Group serves one result type.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*flight[V]
}

type flight[V any] struct {
	done chan struct{} // closed once val/err are published
	val  V
	err  error
}

// Do runs fn once for the given key; concurrent callers with the same key
// wait for the shared result. The first caller becomes the leader and
// runs fn to completion. A follower whose ctx ends returns ctx.Err() and
// stops waiting, but the leader's fn keeps running: cancellation of the
// underlying work only happens through whatever ctx fn itself captured.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*flight[V])
	}
	if f, ok := g.m[key]; ok {
		// Follower: wait for the leader, respecting ctx.
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
	f := &flight[V]{done: make(chan struct{})}
	g.m[key] = f
	g.mu.Unlock()

	// Leader: run fn outside the lock, publish, wake followers.
	f.val, f.err = fn()
	close(f.done)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return f.val, f.err
}
