package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GriffinCanCode/adscan/internal/classifier"
	"github.com/GriffinCanCode/adscan/internal/imaging"
)

func TestKey(t *testing.T) {
	a, _ := imaging.New(1, 1, []byte{1, 2, 3, 255})
	b, _ := imaging.New(1, 1, []byte{1, 2, 3, 255})
	c, _ := imaging.New(1, 1, []byte{1, 2, 4, 255})

	if Key(a) != Key(b) {
		t.Error("identical pixels should share a key")
	}
	if Key(a) == Key(c) {
		t.Error("different pixels should not share a key")
	}
	if len(Key(a)) != 64 {
		t.Errorf("key length = %d, want 64", len(Key(a)))
	}
}

func TestMemoryGetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	if _, ok := m.Get(ctx, "a"); ok {
		t.Error("empty cache should miss")
	}
	m.Put(ctx, "a", classifier.Ad("stake"))
	if r, ok := m.Get(ctx, "a"); !ok || r != classifier.Ad("stake") {
		t.Errorf("Get(a) = %v, %v", r, ok)
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	m.Put(ctx, "a", classifier.NotAd())
	m.Put(ctx, "b", classifier.NotAd())
	m.Get(ctx, "a")
	m.Put(ctx, "c", classifier.NotAd())

	if _, ok := m.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := m.Get(ctx, "a"); !ok {
		t.Error("a was used recently and should survive")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestMemoryDisabled(t *testing.T) {
	m := NewMemory(0)
	m.Put(context.Background(), "a", classifier.NotAd())
	if m.Len() != 0 {
		t.Error("zero-capacity cache stored a result")
	}
}

func TestMemoryConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := string(rune('a' + i%20))
			m.Put(ctx, key, classifier.NotAd())
			m.Get(ctx, key)
		}()
	}
	wg.Wait()
	if m.Len() > 10 {
		t.Errorf("Len() = %d exceeds capacity", m.Len())
	}
}

type fakeRedis struct {
	data   map[string]string
	ttl    time.Duration
	getErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl = exp
	return redis.NewStatusResult("OK", nil)
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRedis{data: map[string]string{}}
	c := NewRedis(fr, "v1", time.Hour)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss")
	}
	c.Put(ctx, "k", classifier.Ad("stake"))

	if got := fr.data[KeyPrefix+"v1:k"]; got != `{"isAd":true,"company":"stake"}` {
		t.Errorf("stored %q", got)
	}
	if fr.ttl != time.Hour {
		t.Errorf("ttl = %v", fr.ttl)
	}
	if r, ok := c.Get(ctx, "k"); !ok || r != classifier.Ad("stake") {
		t.Errorf("Get() = %v, %v", r, ok)
	}
	if _, ok := NewRedis(fr, "v2", time.Hour).Get(ctx, "k"); ok {
		t.Error("other namespace should miss")
	}
}

func TestRedisFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRedis{data: map[string]string{KeyPrefix + "ns:bad": "{"}}
	c := NewRedis(fr, "ns", time.Minute)

	if _, ok := c.Get(ctx, "bad"); ok {
		t.Error("corrupt entry should miss")
	}
	fr.getErr = errors.New("connection refused")
	if _, ok := c.Get(ctx, "bad"); ok {
		t.Error("backend error should miss")
	}
}

func TestDialRedisBadURL(t *testing.T) {
	if _, err := DialRedis(context.Background(), "not-a-url"); err == nil {
		t.Error("DialRedis should reject a malformed url")
	}
}
