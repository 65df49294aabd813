package rates

import "sync"

type cacheKey struct {
	From string
	To   string
	Date string
}

// Cache holds exchange rates resolved earlier in the session, keyed by
// currency pair and rate date. It is shared across concurrently processed
// documents; contention is low and entries are small, so a single mutex is
// enough. The cache lives for one process lifetime and is never persisted.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]float64
}

// NewCache creates an empty session cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]float64)}
}

// Get returns the cached rate for the exact (from, to, date) key.
func (c *Cache) Get(from, to, date string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rate, ok := c.entries[cacheKey{From: from, To: to, Date: date}]
	return rate, ok
}

// Put stores a freshly resolved rate.
func (c *Cache) Put(from, to, date string, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{From: from, To: to, Date: date}] = rate
}

// AnyForPair returns a rate for the currency pair regardless of date, if any
// was resolved earlier in the session. Used as the degraded fallback when
// the rate service is down.
func (c *Cache) AnyForPair(from, to string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, rate := range c.entries {
		if k.From == from && k.To == to {
			return rate, true
		}
	}
	return 0, false
}
