package cache

import (
	"sync"
	"time"
)

type cacheItem struct {
	value      interface{}
	expiration int64
}

// MemoryCache is a TTL key/value cache. A janitor goroutine sweeps expired
// entries once a minute until Close is called.
type MemoryCache struct {
	items sync.Map
	done  chan struct{}
	once  sync.Once
}

func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{done: make(chan struct{})}
	go c.cleanupExpired()
	return c
}

// Set stores value under key for ttl. A ttl of zero means no expiration.
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	expiration := time.Now().Add(ttl).UnixNano()
	if ttl == 0 {
		expiration = 0
	}

	c.items.Store(key, &cacheItem{
		value:      value,
		expiration: expiration,
	})
}

func (c *MemoryCache) Get(key string) (interface{}, bool) {
	item, exists := c.items.Load(key)
	if !exists {
		return nil, false
	}

	ci := item.(*cacheItem)
	if ci.expiration > 0 && time.Now().UnixNano() > ci.expiration {
		c.items.Delete(key)
		return nil, false
	}

	return ci.value, true
}

func (c *MemoryCache) Delete(key string) {
	c.items.Delete(key)
}

func (c *MemoryCache) Clear() {
	c.items.Range(func(key, value interface{}) bool {
		c.items.Delete(key)
		return true
	})
}

// GetAll returns the unexpired entries as a plain map.
func (c *MemoryCache) GetAll() map[string]interface{} {
	result := make(map[string]interface{})
	now := time.Now().UnixNano()
	c.items.Range(func(key, value interface{}) bool {
		item := value.(*cacheItem)
		if item.expiration == 0 || now <= item.expiration {
			result[key.(string)] = item.value
		}
		return true
	})
	return result
}

// Close stops the janitor goroutine. The cache stays usable; expired
// entries are then only evicted lazily on Get.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now().UnixNano()
			c.items.Range(func(key, value interface{}) bool {
				item := value.(*cacheItem)
				if item.expiration > 0 && now > item.expiration {
					c.items.Delete(key)
				}
				return true
			})
		}
	}
}
