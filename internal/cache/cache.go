// Package cache remembers classification results keyed by the canonical
// pixels of the candidate, in memory or in Redis.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/GriffinCanCode/adscan/internal/classifier"
	"github.com/GriffinCanCode/adscan/internal/imaging"
	"github.com/GriffinCanCode/adscan/internal/syncx"
)

// Cache stores results. Implementations never fail: a broken backend is a miss.
type Cache interface {
	Get(ctx context.Context, key string) (classifier.Result, bool)
	Put(ctx context.Context, key string, r classifier.Result)
}

// Key fingerprints a canonical image.
func Key(c *imaging.Canonical) string {
	sum := sha256.Sum256(c.Pix)
	return hex.EncodeToString(sum[:])
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) (classifier.Result, bool) { return classifier.Result{}, false }
func (Nop) Put(context.Context, string, classifier.Result)        {}

type entry struct {
	key    string
	result classifier.Result
}

type lru struct {
	order *list.List
	items map[string]*list.Element
}

// Memory is a size-bounded LRU cache.
type Memory struct {
	capacity int
	state    *syncx.Guard[lru]
}

// NewMemory creates an LRU holding up to capacity results. capacity <= 0
// disables caching.
func NewMemory(capacity int) *Memory {
	return &Memory{
		capacity: capacity,
		state:    syncx.NewGuard(lru{order: list.New(), items: make(map[string]*list.Element)}),
	}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (classifier.Result, bool) {
	type hit struct {
		r  classifier.Result
		ok bool
	}
	h := syncx.Update(m.state, func(s *lru) hit {
		el, ok := s.items[key]
		if !ok {
			return hit{}
		}
		s.order.MoveToFront(el)
		return hit{el.Value.(*entry).result, true}
	})
	return h.r, h.ok
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, key string, r classifier.Result) {
	if m.capacity <= 0 {
		return
	}
	m.state.Write(func(s *lru) {
		if el, ok := s.items[key]; ok {
			el.Value.(*entry).result = r
			s.order.MoveToFront(el)
			return
		}
		s.items[key] = s.order.PushFront(&entry{key: key, result: r})
		for s.order.Len() > m.capacity {
			oldest := s.order.Back()
			s.order.Remove(oldest)
			delete(s.items, oldest.Value.(*entry).key)
		}
	})
}

// Len reports the number of cached results.
func (m *Memory) Len() int {
	return syncx.Read(m.state, func(s lru) int { return s.order.Len() })
}
