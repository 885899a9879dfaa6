package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/searchfuse/searchfuse/schema"
)

// ResponseCache is the L1 cache for pipeline responses, keyed by the query
// plus the options that shape the result set. Typed to responses; the cache
// never stores intermediate candidates, only finished output.
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry
	order    *list.List
}

type entry struct {
	key     string
	value   schema.Response
	expires time.Time
	element *list.Element
}

// NewResponseCache creates an LRU response cache with capacity and TTL.
func NewResponseCache(capacity int, ttl time.Duration) *ResponseCache {
	if capacity <= 0 {
		capacity = 512
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ResponseCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
		order:    list.New(),
	}
}

// Key derives the cache key for a query and the options that affect output.
func Key(query string, topK int, minScore float64, rerank bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%g|%t", query, topK, minScore, rerank)))
	return hex.EncodeToString(sum[:16])
}

func (c *ResponseCache) Get(key string) (schema.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		if time.Now().Before(ent.expires) {
			c.order.MoveToFront(ent.element)
			return ent.value, true
		}
		c.removeEntry(ent)
	}
	return schema.Response{}, false
}

func (c *ResponseCache) Set(key string, value schema.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		ent.value = value
		ent.expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(ent.element)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(key)
	c.items[key] = &entry{
		key:     key,
		value:   value,
		expires: time.Now().Add(c.ttl),
		element: elem,
	}
}

// Purge drops every entry. Called after index rebuilds so stale rankings are
// never served against fresh corpus state.
func (c *ResponseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry, c.capacity)
	c.order.Init()
}

// Len reports the live entry count.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ResponseCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	key := elem.Value.(string)
	if ent, ok := c.items[key]; ok {
		c.removeEntry(ent)
	}
}

func (c *ResponseCache) removeEntry(ent *entry) {
	if ent.element != nil {
		c.order.Remove(ent.element)
	}
	delete(c.items, ent.key)
}
