// Package singleflight coalesces concurrent calls for the same key so the
// supplied function runs at most once while callers share its result.
package singleflight

import (
	"context"
	"sync"
)

// Group deduplicates in-flight calls per key K.
//
// The first caller for a key becomes the leader and runs fn; followers wait
// on the flight's done channel. Publishing (val, err) happens-before
// close(done), so followers observe the final values. A follower whose ctx
// is cancelled unblocks alone; the leader's fn keeps running.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*flight[V]
}

type flight[V any] struct {
	done chan struct{} // closed once val/err are published
	val  V
	err  error
}

// Do runs fn once for key; concurrent calls with the same key share the
// result. Cancelling ctx does not stop the leader's fn; thread ctx into fn
// if the underlying work must be cancellable.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*flight[V])
	}
	if f, ok := g.m[key]; ok {
		done := f.done
		g.mu.Unlock()

		select {
		case <-done:
			return f.val, f.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	f := &flight[V]{done: make(chan struct{})}
	g.m[key] = f
	g.mu.Unlock()

	// Leader path: run fn outside the lock, publish, wake followers.
	f.val, f.err = fn()
	close(f.done)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return f.val, f.err
}
