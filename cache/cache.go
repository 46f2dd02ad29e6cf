// Package cache adds a tiered response cache in front of a rotator
// Fetcher: L1 in-memory, optional L2 Redis. L1 is fast but lost on
// restart; L2 survives restarts and is shared across processes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	rotator "github.com/anatolykoptev/go-rotator"
)

// Cache is the tiered store. Values are opaque bytes; keys come from Key.
type Cache struct {
	l1         sync.Map      // key → *entry
	rdb        *redis.Client // nil if Redis unavailable
	ttl        time.Duration
	maxEntries int

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New sets up the cache. redisURL can be empty to run L1-only; an
// unreachable Redis downgrades to L1-only with a warning rather than
// failing.
func New(redisURL string, ttl time.Duration, maxEntries int) *Cache {
	c := &Cache{ttl: ttl, maxEntries: maxEntries}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	slog.Debug("cache: initialized",
		slog.Duration("ttl", ttl),
		slog.Bool("redis", c.rdb != nil),
		slog.Int("max_entries", maxEntries),
	)
	return c
}

// Key builds a deterministic cache key from parts.
func Key(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("rt:%x", hash[:12])
}

// Get tries L1, then L2. On an L2 hit, L1 is populated.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.l1.Load(key); ok {
		e := val.(*entry)
		if time.Now().Before(e.expiresAt) {
			c.hits.Add(1)
			return e.data, true
		}
		c.l1.Delete(key) // expired
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			c.hits.Add(1)
			c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})
			return data, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores data in both tiers.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	c.evictIfNeeded()

	c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// Stats returns the hit/miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// CleanupLoop removes expired L1 entries every interval until ctx ends.
func (c *Cache) CleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			c.l1.Range(func(key, val any) bool {
				if e, ok := val.(*entry); ok && now.After(e.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}

// evictIfNeeded removes entries when L1 exceeds maxEntries: expired
// first, then oldest by expiry until under the limit.
func (c *Cache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if e, ok := val.(*entry); ok && now.After(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := now.Add(24 * time.Hour)
		c.l1.Range(func(key, val any) bool {
			if e, ok := val.(*entry); ok && e.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = e.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

// FetchClient is the slice of rotator.Fetcher the decorator needs.
type FetchClient interface {
	Fetch(ctx context.Context, req *rotator.FetchRequest) (*rotator.Result, error)
}

// Fetcher serves repeated GETs from the cache, delegating misses to the
// wrapped client and caching its successes.
type Fetcher struct {
	next  FetchClient
	cache *Cache
}

// cachedResult is the stored shape of a successful fetch.
type cachedResult struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
}

// WrapFetcher decorates next with the cache.
func WrapFetcher(next FetchClient, c *Cache) *Fetcher {
	return &Fetcher{next: next, cache: c}
}

// Fetch returns a cached result when possible. Only body-less GETs are
// cacheable; everything else passes straight through.
func (f *Fetcher) Fetch(ctx context.Context, req *rotator.FetchRequest) (*rotator.Result, error) {
	if !cacheable(req) {
		return f.next.Fetch(ctx, req)
	}

	key := Key("fetch", req.URL)
	if data, ok := f.cache.Get(ctx, key); ok {
		var cr cachedResult
		if json.Unmarshal(data, &cr) == nil {
			slog.Debug("cache: hit", slog.String("url", req.URL))
			return &rotator.Result{
				Body:       cr.Body,
				StatusCode: cr.StatusCode,
				Header:     cr.Header,
			}, nil
		}
	}

	res, err := f.next.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		data, err := json.Marshal(cachedResult{
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       res.Body,
		})
		if err == nil {
			f.cache.Set(ctx, key, data)
		}
	}
	return res, nil
}

func cacheable(req *rotator.FetchRequest) bool {
	if len(req.Body) > 0 {
		return false
	}
	return req.Method == "" || req.Method == http.MethodGet
}
