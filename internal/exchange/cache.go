package exchange

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Cache keeps quoted pairs for a fixed TTL. Concurrent writers race
// last-write-wins.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	rate    decimal.Decimal
	expires time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *Cache) Get(from, to string) (decimal.Decimal, bool) {
	c.mu.RLock()
	entry, ok := c.entries[pairKey(from, to)]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return decimal.Zero, false
	}
	return entry.rate, true
}

func (c *Cache) Set(from, to string, rate decimal.Decimal) {
	c.mu.Lock()
	c.entries[pairKey(from, to)] = cacheEntry{rate: rate, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func pairKey(from, to string) string {
	return from + "_" + to
}
