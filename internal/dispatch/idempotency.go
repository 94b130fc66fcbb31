package dispatch

import (
	"sync"
	"time"
)

type idemEntry struct {
	booking Booking
	expiry  time.Time
}

// idemCache maps Idempotency-Key headers to the booking they produced.
type idemCache struct {
	mu    sync.Mutex
	byKey map[string]idemEntry
	ttl   time.Duration
	now   func() time.Time
}

func newIdemCache() *idemCache {
	return &idemCache{
		byKey: make(map[string]idemEntry),
		ttl:   30 * time.Minute,
		now:   time.Now,
	}
}

// SetTTL overrides ttl used for cache entries.
func (c *idemCache) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		c.ttl = ttl
	}
}

func (c *idemCache) Remember(key string, b Booking) {
	if key == "" || b.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[key] = idemEntry{booking: b, expiry: c.now().Add(c.ttl)}
}

// Lookup returns the booking if key exists and has not expired.
func (c *idemCache) Lookup(key string) (Booking, bool) {
	if key == "" {
		return Booking{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byKey[key]
	if !ok {
		return Booking{}, false
	}
	if c.now().After(entry.expiry) {
		delete(c.byKey, key)
		return Booking{}, false
	}
	return entry.booking, true
}

// sweep drops expired entries.
func (c *idemCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.byKey {
		if now.After(e.expiry) {
			delete(c.byKey, k)
			n++
		}
	}
	return n
}
