package cache

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/metrics"
	"github.com/aristath/vnmarket/pkg/logger"
)

// DefaultMaxEntries bounds the in-memory tier when Config.MaxEntries is unset.
const DefaultMaxEntries = 1024

// Config holds cache configuration
type Config struct {
	MaxEntries int              // LRU bound for the in-memory tier
	DefaultTTL time.Duration    // TTL used by Set; defaults to TierShort
	Store      Store            // Optional second tier
	Now        func() time.Time // Clock, replaceable in tests
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries     int    `json:"entries"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Expirations uint64 `json:"expirations"`
	Persistent  bool   `json:"persistent"`
}

// Cache is an in-memory LRU response cache with lazy TTL expiry and an
// optional persistent second tier. It is safe for concurrent use; the cache
// never returns errors, second-tier failures are logged and treated as misses.
type Cache struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, Entry]
	store      Store
	defaultTTL time.Duration
	now        func() time.Time
	log        zerolog.Logger

	hits        uint64
	misses      uint64
	expirations uint64
}

// New creates a cache.
func New(cfg Config, log zerolog.Logger) (*Cache, error) {
	size := cfg.MaxEntries
	if size <= 0 {
		size = DefaultMaxEntries
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = TierShort
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Cache{
		entries:    entries,
		store:      cfg.Store,
		defaultTTL: ttl,
		now:        now,
		log:        logger.Component(log, "response-cache"),
	}, nil
}

// Get returns the payload cached under key if it has not expired.
// An expired entry is deleted and reported absent.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if e, ok := c.entries.Get(key); ok {
		if e.Valid(now) {
			c.hits++
			metrics.RecordCacheHit("memory")
			c.log.Debug().Str("key", key).Msg("Cache hit")
			return bytes.Clone(e.Payload), true
		}
		c.entries.Remove(key)
		c.expire(key)
		c.miss(key)
		return nil, false
	}

	if c.store != nil {
		e, ok, err := c.store.Load(key)
		switch {
		case err != nil:
			c.log.Warn().Err(err).Str("key", key).Msg("Failed to read persistent cache tier")
		case ok && e.Valid(now):
			c.entries.Add(key, e)
			c.hits++
			metrics.RecordCacheHit("store")
			metrics.SetCacheEntries(c.entries.Len())
			c.log.Debug().Str("key", key).Msg("Cache hit (persistent tier)")
			return bytes.Clone(e.Payload), true
		case ok:
			c.expire(key)
		}
	}

	c.miss(key)
	return nil, false
}

// Set stores payload under key with the default TTL.
func (c *Cache) Set(key string, payload []byte) {
	c.SetWithTTL(key, payload, 0)
}

// SetWithTTL stores payload under key, replacing any existing entry.
// A non-positive ttl selects the default TTL.
func (c *Cache) SetWithTTL(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := Entry{
		Key:      key,
		Payload:  bytes.Clone(payload),
		StoredAt: c.now(),
		TTL:      ttl,
	}
	c.entries.Add(key, e)
	metrics.SetCacheEntries(c.entries.Len())

	if c.store != nil {
		if err := c.store.Save(e); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Failed to write persistent cache tier")
		}
	}
}

// Invalidate removes every entry whose key contains pattern and returns the
// number of in-memory entries removed. An empty pattern matches nothing.
func (c *Cache) Invalidate(pattern string) int {
	if pattern == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.entries.Keys() {
		if strings.Contains(key, pattern) {
			c.entries.Remove(key)
			removed++
		}
	}
	metrics.SetCacheEntries(c.entries.Len())

	if c.store != nil {
		if _, err := c.store.DeleteMatching(pattern); err != nil {
			c.log.Warn().Err(err).Str("pattern", pattern).Msg("Failed to invalidate persistent cache tier")
		}
	}

	c.log.Debug().Str("pattern", pattern).Int("removed", removed).Msg("Cache invalidated")
	return removed
}

// Clear removes all entries from both tiers.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	metrics.SetCacheEntries(0)

	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to clear persistent cache tier")
		}
	}
	c.log.Info().Msg("Cache cleared")
}

// Len returns the number of in-memory entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:     c.entries.Len(),
		Hits:        c.hits,
		Misses:      c.misses,
		Expirations: c.expirations,
		Persistent:  c.store != nil,
	}
}

// Store returns the second tier, or nil when the cache is memory-only.
func (c *Cache) Store() Store {
	return c.store
}

// expire records a lazily purged entry and drops it from the second tier.
// Caller holds c.mu.
func (c *Cache) expire(key string) {
	c.expirations++
	metrics.RecordCacheExpiration()
	metrics.SetCacheEntries(c.entries.Len())
	if c.store != nil {
		if err := c.store.Delete(key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Failed to delete expired entry from persistent tier")
		}
	}
	c.log.Debug().Str("key", key).Msg("Cache entry expired")
}

func (c *Cache) miss(key string) {
	c.misses++
	metrics.RecordCacheMiss()
	c.log.Debug().Str("key", key).Msg("Cache miss")
}
