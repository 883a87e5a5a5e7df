package syncx

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Flight deduplicates concurrent calls sharing a key. Callers that join an
// in-flight call receive its result.
type Flight[T any] struct {
	g singleflight.Group
}

// Do runs fn once per key among concurrent callers. A caller whose ctx ends
// first stops waiting; the call itself keeps running for the others.
func (f *Flight[T]) Do(ctx context.Context, key string, fn func() (T, error)) (T, bool, error) {
	ch := f.g.DoChan(key, func() (any, error) { return fn() })
	select {
	case r := <-ch:
		v, _ := r.Val.(T)
		return v, r.Shared, r.Err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}
