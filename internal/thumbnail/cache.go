package thumbnail

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AlexGustafsson/metube/internal/metrics"
)

const DefaultTTL = 120 * time.Second

// Texture is a decoded thumbnail. A texture is owned by the cache holding it
// and is released once evicted or replaced.
type Texture interface {
	Release()
}

type entry struct {
	texture Texture
	expires time.Time
}

type CacheOptions struct {
	TTL time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now     func() time.Time
	Metrics *metrics.Metrics
}

// Cache maps result ids to decoded textures. An entry expires once TTL has
// passed since it was stored or last touched. Expired entries are only
// removed by EvictOne.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mutex   sync.Mutex
	entries map[string]*entry

	metrics *metrics.Metrics
}

func NewCache(options *CacheOptions) *Cache {
	if options == nil {
		options = &CacheOptions{}
	}

	ttl := options.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := options.Now
	if now == nil {
		now = time.Now
	}

	m := options.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]*entry),
		metrics: m,
	}
}

// Lookup returns the texture of a live entry and restarts its timer.
func (c *Cache) Lookup(id string) (Texture, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	entry, ok := c.entries[id]
	if !ok || !now.Before(entry.expires) {
		c.metrics.ThumbnailCacheMisses.Inc()
		return nil, false
	}

	c.metrics.ThumbnailCacheHits.Inc()
	entry.expires = now.Add(c.ttl)
	return entry.texture, true
}

// Store inserts or replaces the texture of id with a fresh timer. A replaced
// texture is released.
func (c *Cache) Store(id string, texture Texture) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	expires := c.now().Add(c.ttl)
	if existing, ok := c.entries[id]; ok {
		if existing.texture != texture {
			existing.texture.Release()
		}
		existing.texture = texture
		existing.expires = expires
		return
	}

	c.entries[id] = &entry{texture: texture, expires: expires}
	c.metrics.CachedThumbnails.Set(float64(len(c.entries)))
}

// Touch restarts the timer of id. An entry that has expired but not yet been
// evicted is kept alive. Returns false if there is no entry for id.
func (c *Cache) Touch(id string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return false
	}
	entry.expires = c.now().Add(c.ttl)
	return true
}

// EvictOne releases and removes at most one expired entry, the one that
// expired first. It returns the id of the evicted entry, if any.
func (c *Cache) EvictOne() (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	var oldestID string
	var oldest *entry
	for id, entry := range c.entries {
		if now.Before(entry.expires) {
			continue
		}
		if oldest == nil || entry.expires.Before(oldest.expires) {
			oldestID = id
			oldest = entry
		}
	}

	if oldest == nil {
		return "", false
	}

	oldest.texture.Release()
	delete(c.entries, oldestID)
	c.metrics.ThumbnailEvictions.Inc()
	c.metrics.CachedThumbnails.Set(float64(len(c.entries)))
	slog.Debug("Evicted thumbnail", slog.String("id", oldestID))
	return oldestID, true
}

// Len returns the number of entries, including expired entries not yet
// evicted.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Close releases all textures.
func (c *Cache) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for id, entry := range c.entries {
		entry.texture.Release()
		delete(c.entries, id)
	}
	c.metrics.CachedThumbnails.Set(0)
}
