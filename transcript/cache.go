package transcript

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched transcript is served from memory.
const DefaultTTL = 10 * time.Minute

type cacheKey struct {
	videoID  string
	language string
}

func (k cacheKey) String() string { return k.videoID + "|" + k.language }

type cacheEntry struct {
	text      string
	fetchedAt time.Time
}

// Cache memoizes transcript fetches per (video id, language). Expired entries
// are kept until the next fetch for the same key overwrites them.
type Cache struct {
	resolver *Resolver
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	flight  singleflight.Group

	hits    atomic.Int64
	misses  atomic.Int64
	fetches atomic.Int64
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCache(resolver *Resolver, opts ...CacheOption) *Cache {
	c := &Cache{
		resolver: resolver,
		ttl:      DefaultTTL,
		now:      time.Now,
		entries:  make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the transcript for raw, fetching it when there is no fresh
// entry or refresh is set. Concurrent misses for one key share a single fetch.
func (c *Cache) Get(ctx context.Context, raw, language string, refresh bool) (string, error) {
	id, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	key := cacheKey{videoID: id, language: normalizeLanguage(language)}

	if !refresh {
		if text, ok := c.lookup(key); ok {
			c.hits.Add(1)
			return text, nil
		}
	}
	c.misses.Add(1)

	flightKey := key.String()
	if refresh {
		flightKey = "refresh|" + flightKey
	}

	// The shared fetch outlives any single waiter; a caller that goes away
	// stops waiting and the result still lands in the cache.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		if !refresh {
			if text, ok := c.lookup(key); ok {
				return text, nil
			}
		}
		c.fetches.Add(1)
		text, err := c.resolver.fetch(fetchCtx, key.videoID, key.language)
		if err != nil {
			return "", err
		}
		c.store(key, text)
		return text, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Cache) lookup(key cacheKey) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return "", false
	}
	return entry.text, true
}

func (c *Cache) store(key cacheKey, text string) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{text: text, fetchedAt: c.now()}
	c.mu.Unlock()
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Fetches int64
	Entries int
}

func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Fetches: c.fetches.Load(),
		Entries: n,
	}
}
