// Package cache holds aggregated results per (query, region) with a TTL.
//
// Reads come in two modes. Get is strict: an expired entry is a miss and is
// evicted from the live set. GetLenient ignores expiry and is reserved for the
// last-resort path when a live fetch produced nothing. Entries evicted by a
// strict read are kept in a bounded stale set so the lenient path can still
// find them.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 256
)

// Key identifies a cached result.
type Key struct {
	Query  string
	Region string
}

// NewKey normalizes query and region so equivalent requests share an entry.
func NewKey(query, region string) Key {
	return Key{
		Query:  strings.ToLower(strings.TrimSpace(query)),
		Region: strings.ToUpper(strings.TrimSpace(region)),
	}
}

func (k Key) String() string {
	return k.Query + "|" + k.Region
}

// Entry is a cached aggregation result.
type Entry struct {
	Key      Key
	Articles []article.Article
	Sources  []string
	StoredAt time.Time
	TTL      time.Duration
}

// Cache is a bounded TTL cache safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	live  *lru.Cache[Key, Entry]
	stale *lru.Cache[Key, Entry]
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache. Non-positive arguments fall back to the defaults.
func New(ttl time.Duration, maxEntries int, opts ...Option) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	live, err := lru.New[Key, Entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating live cache: %w", err)
	}
	stale, err := lru.New[Key, Entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating stale cache: %w", err)
	}

	c := &Cache{live: live, stale: stale, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured time to live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a non-expired entry. An expired entry is moved out of the live
// set and reported as a miss.
func (c *Cache) Get(key Key) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live.Get(key)
	if !ok {
		return nil, false
	}
	if c.isExpired(e) {
		c.live.Remove(key)
		c.stale.Add(key, e)
		return nil, false
	}
	return copyEntry(e), true
}

// GetLenient returns the most recent entry for key regardless of expiry.
func (c *Cache) GetLenient(key Key) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.live.Peek(key); ok {
		return copyEntry(e), true
	}
	if e, ok := c.stale.Peek(key); ok {
		return copyEntry(e), true
	}
	return nil, false
}

// Set stores a copy of articles under key.
func (c *Cache) Set(key Key, articles []article.Article, sources []string) {
	e := Entry{
		Key:      key,
		Articles: article.Clone(articles),
		Sources:  append([]string(nil), sources...),
		StoredAt: c.now(),
		TTL:      c.ttl,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale.Remove(key)
	c.live.Add(key, e)
}

// IsExpired reports whether entry has outlived its TTL.
func (c *Cache) IsExpired(entry *Entry) bool {
	if entry == nil {
		return true
	}
	return c.isExpired(*entry)
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.Len()
}

// Purge drops every entry, live and stale.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live.Purge()
	c.stale.Purge()
}

func (c *Cache) isExpired(e Entry) bool {
	ttl := e.TTL
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.now().Sub(e.StoredAt) > ttl
}

func copyEntry(e Entry) *Entry {
	e.Articles = article.Clone(e.Articles)
	e.Sources = append([]string(nil), e.Sources...)
	return &e
}
