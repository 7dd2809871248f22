package resolver

import (
	"net"
	"sync"
	"time"
)

type cacheKey struct {
	name  string
	qtype QType
}

type cacheEntry struct {
	ips      []net.IP
	expireAt time.Time
	negative bool
}

// Cache is the positive/negative TTL cache of spec §4.4, keyed by
// (name, type). A negative entry (an empty reply) is cached for
// NegativeTTL rather than the driver's own TTL, per spec: "an empty
// reply caches an 'empty' marker for negative_ttl seconds".
type Cache struct {
	mu         sync.Mutex
	entries    map[cacheKey]cacheEntry
	NegativeTTL time.Duration
	now        func() time.Time
}

// NewCache builds an empty cache. negativeTTL should default to the
// daemon's RESOLVER_MINIMUM_CACHE_TTL floor per spec §4.4.
func NewCache(negativeTTL time.Duration) *Cache {
	return &Cache{
		entries:     make(map[cacheKey]cacheEntry),
		NegativeTTL: negativeTTL,
		now:         time.Now,
	}
}

// Lookup returns (ips, true) on a live hit (ips is nil for a negative
// entry), or (nil, false) on miss/expiry — including an expired negative entry,
// which the caller must then re-resolve via the driver.
func (c *Cache) Lookup(name string, qtype QType) ([]net.IP, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{name: name, qtype: qtype}
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expireAt) {
		return nil, false
	}
	return entry.ips, true
}

// StorePositive caches a successful, non-empty driver result until ttl
// elapses.
func (c *Cache) StorePositive(name string, qtype QType, ips []net.IP, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{name: name, qtype: qtype}] = cacheEntry{
		ips:      ips,
		expireAt: c.now().Add(ttl),
	}
}

// StoreNegative caches an empty reply for NegativeTTL.
func (c *Cache) StoreNegative(name string, qtype QType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{name: name, qtype: qtype}] = cacheEntry{
		negative: true,
		expireAt: c.now().Add(c.NegativeTTL),
	}
}
