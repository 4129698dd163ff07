package cache

import (
	"container/list"
	"sync"
	"time"
)

// Store is a byte cache the response middleware can use. Cache and RedisStore implement it.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte)
	Delete(key string)
	Stats() map[string]interface{}
}

// Config bounds a Cache. Zero MaxEntries or MaxBytes means unbounded.
type Config struct {
	TTL             time.Duration
	MaxEntries      int
	MaxBytes        int64
	CleanupInterval time.Duration
}

// CacheItem represents a cached item with expiration
type CacheItem struct {
	key       string
	Data      []byte
	ExpiresAt time.Time
}

// IsExpired checks if the cache item has expired at now
func (c *CacheItem) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache is a thread-safe TTL cache with LRU eviction
type Cache struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
	bytes int64

	config Config
	now    func() time.Time

	hits      int64
	misses    int64
	evictions int64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewCache creates a cache and starts its cleanup goroutine. Call Close to stop it.
func NewCache(config Config) *Cache {
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = min(config.TTL, 5*time.Minute)
	}

	c := &Cache{
		items:  make(map[string]*list.Element),
		order:  list.New(),
		config: config,
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// cleanup removes expired items periodically
func (c *Cache) cleanup() {
	defer close(c.done)

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, el := range c.items {
		if el.Value.(*CacheItem).IsExpired(now) {
			c.removeElement(el)
		}
	}
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
	})
}

func (c *Cache) removeElement(el *list.Element) {
	item := el.Value.(*CacheItem)
	c.order.Remove(el)
	delete(c.items, item.key)
	c.bytes -= int64(len(item.Data))
}

// Get retrieves an item and marks it most recently used
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}

	item := el.Value.(*CacheItem)
	if item.IsExpired(c.now()) {
		c.removeElement(el)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return item.Data, true
}

// Set stores an item with the default TTL
func (c *Cache) Set(key string, data []byte) {
	c.SetWithTTL(key, data, c.config.TTL)
}

// SetWithTTL stores an item, evicting the least recently used items over the bounds.
// An item larger than MaxBytes is not stored.
func (c *Cache) SetWithTTL(key string, data []byte, ttl time.Duration) {
	if c.config.MaxBytes > 0 && int64(len(data)) > c.config.MaxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, exists := c.items[key]; exists {
		c.removeElement(el)
	}

	item := &CacheItem{key: key, Data: data, ExpiresAt: c.now().Add(ttl)}
	c.items[key] = c.order.PushFront(item)
	c.bytes += int64(len(data))

	for c.overLimit() {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions++
	}
}

func (c *Cache) overLimit() bool {
	if c.config.MaxEntries > 0 && c.order.Len() > c.config.MaxEntries {
		return true
	}
	return c.config.MaxBytes > 0 && c.bytes > c.config.MaxBytes
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, exists := c.items[key]; exists {
		c.removeElement(el)
	}
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.bytes = 0
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredItems := 0
	for _, el := range c.items {
		if el.Value.(*CacheItem).IsExpired(now) {
			expiredItems++
		}
	}

	hitRate := 0.0
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return map[string]interface{}{
		"backend":       "memory",
		"total_items":   c.order.Len(),
		"expired_items": expiredItems,
		"active_items":  c.order.Len() - expiredItems,
		"bytes":         c.bytes,
		"max_entries":   c.config.MaxEntries,
		"max_bytes":     c.config.MaxBytes,
		"hits":          c.hits,
		"misses":        c.misses,
		"evictions":     c.evictions,
		"hit_rate":      hitRate,
		"ttl_seconds":   c.config.TTL.Seconds(),
	}
}
