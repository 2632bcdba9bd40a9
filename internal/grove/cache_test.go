package grove

import (
	"encoding/json"
	"testing"
	"time"
)

// fakeClock is an adjustable clock for cache tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestCacheTTLBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	cache := NewCache(5*time.Minute, clock.Now)

	uri := URI("grove://abc")
	cache.Set(uri, json.RawMessage(`{"users":[]}`))

	clock.Advance(4*time.Minute + 59*time.Second)
	if _, ok := cache.Get(uri); !ok {
		t.Fatal("expected cache hit at T+4:59")
	}

	clock.Advance(2 * time.Second)
	if _, ok := cache.Get(uri); ok {
		t.Fatal("expected cache miss at T+5:01")
	}
}

func TestCacheInvalidate(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(0, clock.Now)

	a := URI("grove://aaa")
	b := URI("grove://bbb")
	c := URI("grove://ccc")
	for _, uri := range []URI{a, b, c} {
		cache.Set(uri, json.RawMessage(`1`))
	}

	cache.Invalidate(a)
	if _, ok := cache.Get(a); ok {
		t.Error("entry survived Invalidate")
	}
	if _, ok := cache.Get(b); !ok {
		t.Error("unrelated entry evicted")
	}

	cache.InvalidateAll([]URI{b, c})
	if cache.Len() != 0 {
		t.Errorf("expected empty cache after sweep, got %d entries", cache.Len())
	}
}

func TestCacheDefaultTTL(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(0, clock.Now)
	uri := URI("grove://abc")
	cache.Set(uri, json.RawMessage(`1`))

	clock.Advance(DefaultTTL - time.Second)
	if _, ok := cache.Get(uri); !ok {
		t.Error("expected default TTL of 5 minutes")
	}
	clock.Advance(2 * time.Second)
	if _, ok := cache.Get(uri); ok {
		t.Error("entry survived past default TTL")
	}
}
