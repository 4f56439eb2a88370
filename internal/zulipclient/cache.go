package zulipclient

import (
	"sync"
	"time"
)

// entry is one opportunistically-cached payload.
type entry struct {
	payload   []byte
	fetchedAt time.Time
}

// ttlCache is a tiny in-memory read-through cache keyed by an opaque
// string, scoped to one read kind (streams, users, ...). Stale entries
// are lazily evicted on access rather than swept by a background timer,
// matching spec.md §4.3's "opportunistic... lazily evicted" wording.
type ttlCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]entry
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl, m: make(map[string]entry)}
}

// Get returns the cached payload and true if present and not stale.
func (c *ttlCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.fetchedAt) >= c.ttl {
		delete(c.m, key)
		return nil, false
	}
	return e.payload, true
}

// Set stores a payload, overwriting any existing entry for key.
func (c *ttlCache) Set(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry{payload: payload, fetchedAt: time.Now()}
}

// caches bundles the read-through caches C3 maintains per spec.md §3's
// read-through cache table. They live in memory only and are not
// written to the store's read_cache table, so a restart starts cold.
type caches struct {
	streams *ttlCache // TTL 600s
	users   *ttlCache // TTL 900s
}

func newCaches() *caches {
	return &caches{
		streams: newTTLCache(600 * time.Second),
		users:   newTTLCache(900 * time.Second),
	}
}
