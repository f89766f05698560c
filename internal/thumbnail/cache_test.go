package thumbnail

import (
	"testing"
	"time"

	"github.com/AlexGustafsson/metube/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeTexture struct {
	name     string
	released int
}

func (t *fakeTexture) Release() {
	t.released++
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestCache() (*Cache, *fakeClock, *metrics.Metrics) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := metrics.New()
	cache := NewCache(&CacheOptions{TTL: time.Minute, Now: clock.Now, Metrics: m})
	return cache, clock, m
}

func TestCacheLookup(t *testing.T) {
	cache, clock, m := newTestCache()

	_, ok := cache.Lookup("a")
	assert.False(t, ok)

	texture := &fakeTexture{name: "a"}
	cache.Store("a", texture)

	got, ok := cache.Lookup("a")
	assert.True(t, ok)
	assert.Same(t, texture, got)

	// Expired entries are not served
	clock.Advance(time.Minute)
	_, ok = cache.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ThumbnailCacheHits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ThumbnailCacheMisses))
}

func TestCacheLookupExtendsTTL(t *testing.T) {
	cache, clock, _ := newTestCache()
	cache.Store("a", &fakeTexture{})

	for range 5 {
		clock.Advance(50 * time.Second)
		_, ok := cache.Lookup("a")
		assert.True(t, ok)
	}
}

func TestCacheStoreReplaces(t *testing.T) {
	cache, _, m := newTestCache()

	first := &fakeTexture{name: "first"}
	second := &fakeTexture{name: "second"}
	cache.Store("a", first)
	cache.Store("a", first)
	assert.Equal(t, 0, first.released)

	cache.Store("a", second)
	assert.Equal(t, 1, first.released)
	assert.Equal(t, 0, second.released)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CachedThumbnails))

	got, ok := cache.Lookup("a")
	assert.True(t, ok)
	assert.Same(t, second, got)
}

func TestCacheEvictOne(t *testing.T) {
	cache, clock, m := newTestCache()

	a := &fakeTexture{name: "a"}
	b := &fakeTexture{name: "b"}
	c := &fakeTexture{name: "c"}
	cache.Store("a", a)
	clock.Advance(time.Second)
	cache.Store("b", b)
	clock.Advance(time.Second)
	cache.Store("c", c)

	_, ok := cache.EvictOne()
	assert.False(t, ok)

	clock.Advance(2 * time.Minute)

	// At most one entry per call, oldest first
	id, ok := cache.EvictOne()
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, 1, a.released)
	assert.Equal(t, 2, cache.Len())

	id, ok = cache.EvictOne()
	assert.True(t, ok)
	assert.Equal(t, "b", id)

	id, ok = cache.EvictOne()
	assert.True(t, ok)
	assert.Equal(t, "c", id)

	_, ok = cache.EvictOne()
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ThumbnailEvictions))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CachedThumbnails))
}

func TestCacheTouch(t *testing.T) {
	cache, clock, _ := newTestCache()

	assert.False(t, cache.Touch("a"))

	a := &fakeTexture{}
	cache.Store("a", a)

	clock.Advance(50 * time.Second)
	assert.True(t, cache.Touch("a"))

	// 100s after storing but only 50s after the touch
	clock.Advance(50 * time.Second)
	_, ok := cache.EvictOne()
	assert.False(t, ok)

	// Touching an expired entry that is not yet evicted revives it
	clock.Advance(2 * time.Minute)
	assert.True(t, cache.Touch("a"))
	_, ok = cache.EvictOne()
	assert.False(t, ok)
	assert.Equal(t, 0, a.released)

	clock.Advance(time.Minute)
	_, ok = cache.EvictOne()
	assert.True(t, ok)
	assert.Equal(t, 1, a.released)
}

func TestCacheClose(t *testing.T) {
	cache, _, m := newTestCache()

	a := &fakeTexture{}
	b := &fakeTexture{}
	cache.Store("a", a)
	cache.Store("b", b)

	cache.Close()
	assert.Equal(t, 1, a.released)
	assert.Equal(t, 1, b.released)
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CachedThumbnails))
}

func TestCacheDefaults(t *testing.T) {
	cache := NewCache(nil)
	assert.Equal(t, DefaultTTL, cache.ttl)
	assert.NotNil(t, cache.now)
}
