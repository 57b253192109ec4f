package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/pkg/metrics"
	"github.com/yanqian/ocean-insight/pkg/util"
)

// Loader performs the upstream fetch for a cache miss.
type Loader func(ctx context.Context) (ocean.Dataset, error)

// Outcome describes how GetOrFetch produced its entry.
type Outcome struct {
	CacheHit bool
	// Shared is set when the upstream fetch served more than one caller.
	Shared bool
}

// Cache is a read-through TTL cache keyed by DataRequest.Key. Concurrent
// misses on one key share a single upstream fetch.
type Cache struct {
	store   Store
	cfg     CacheConfig
	group   singleflight.Group
	clock   util.Clock
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewCache wires a cache over store.
func NewCache(store Store, cfg CacheConfig, recorder *metrics.Recorder, logger *slog.Logger) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 2 * time.Second
	}
	return &Cache{
		store:   store,
		cfg:     cfg,
		clock:   util.NowUTC,
		metrics: recorder,
		logger:  logger.With("component", "aggregation.cache"),
	}
}

// WithClock overrides the time source; used by tests.
func (c *Cache) WithClock(clock util.Clock) *Cache {
	c.clock = clock.OrDefault()
	return c
}

// TTL returns the configured lifetime for a domain.
func (c *Cache) TTL(domain ocean.Domain) time.Duration {
	if ttl, ok := c.cfg.TTL[domain]; ok && ttl > 0 {
		return ttl
	}
	return c.cfg.DefaultTTL
}

// Get returns a fresh entry for req and counts the access. Expired entries
// and store failures read as misses.
func (c *Cache) Get(ctx context.Context, req ocean.DataRequest) (CacheEntry, bool) {
	key := req.Key()
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", "domain", req.Domain, "key", key, "error", fmt.Errorf("%w: %v", ErrCacheUnavailable, err))
		c.metrics.CacheLookup(string(req.Domain), metrics.LookupError)
		return CacheEntry{}, false
	}
	if !ok || entry.Expired(c.clock()) {
		c.metrics.CacheLookup(string(req.Domain), metrics.LookupMiss)
		return CacheEntry{}, false
	}
	count, err := c.store.IncrementAccess(ctx, key)
	switch {
	case errors.Is(err, ErrEntryNotFound):
		// Evicted between the read and the increment.
		c.metrics.CacheLookup(string(req.Domain), metrics.LookupMiss)
		return CacheEntry{}, false
	case err != nil:
		c.logger.Warn("cache access count failed", "domain", req.Domain, "key", key, "error", err)
		entry.AccessCount++
	default:
		entry.AccessCount = count
	}
	c.metrics.CacheLookup(string(req.Domain), metrics.LookupHit)
	return entry, true
}

// Put stores ds for req with the given ttl. The returned entry is valid
// even when the store rejects the write; the error then wraps
// ErrCacheUnavailable.
func (c *Cache) Put(ctx context.Context, req ocean.DataRequest, ds ocean.Dataset, sourceLabel string, ttl time.Duration) (CacheEntry, error) {
	if ttl <= 0 {
		ttl = c.TTL(req.Domain)
	}
	now := c.clock()
	entry := CacheEntry{
		Key:         req.Key(),
		Dataset:     ds,
		SourceLabel: sourceLabel,
		FetchedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := c.store.Put(ctx, entry); err != nil {
		return entry, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return entry, nil
}

// EvictExpired drops stale entries and returns how many were removed.
func (c *Cache) EvictExpired(ctx context.Context) int {
	n, err := c.store.EvictExpired(ctx, c.clock())
	if err != nil {
		c.logger.Warn("cache eviction failed", "error", err)
	}
	c.metrics.CacheEvicted(n)
	return n
}

// GetOrFetch serves req from the cache or runs load exactly once per key
// across concurrent callers. The first caller's ctx governs the shared
// fetch: if it is cancelled the flight fails for everyone waiting on it.
// Each caller also stops waiting when its own ctx ends.
func (c *Cache) GetOrFetch(ctx context.Context, req ocean.DataRequest, sourceLabel string, load Loader) (CacheEntry, Outcome, error) {
	if entry, ok := c.Get(ctx, req); ok {
		return entry, Outcome{CacheHit: true}, nil
	}

	key := req.Key()
	ch := c.group.DoChan(key, func() (any, error) {
		// A caller that missed just before an earlier flight stored its
		// result lands here after that flight has left the group.
		if entry, ok := c.recheck(ctx, req); ok {
			return flight{entry: entry, hit: true}, nil
		}
		ds, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := ds.Validate(); err != nil {
			return nil, ocean.NewUnavailable(req.Domain, "invalid dataset", err)
		}
		// The fetch succeeded; keep it even if the leader has gone away.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StoreTimeout)
		defer cancel()
		entry, err := c.Put(storeCtx, req, ds, sourceLabel, c.TTL(req.Domain))
		if err != nil {
			c.logger.Warn("cache write failed", "domain", req.Domain, "key", key, "error", err)
		}
		return flight{entry: entry}, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.SharedFetch(string(req.Domain))
		}
		if res.Err != nil {
			return CacheEntry{}, Outcome{Shared: res.Shared}, res.Err
		}
		f := res.Val.(flight)
		return f.entry, Outcome{CacheHit: f.hit, Shared: res.Shared}, nil
	case <-ctx.Done():
		return CacheEntry{}, Outcome{}, ocean.NewTimeout(req.Domain, ctx.Err())
	}
}

type flight struct {
	entry CacheEntry
	hit   bool
}

// recheck reads the store again from inside a flight. Failures read as
// misses without touching the lookup metrics, which Get already counted.
func (c *Cache) recheck(ctx context.Context, req ocean.DataRequest) (CacheEntry, bool) {
	key := req.Key()
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok || entry.Expired(c.clock()) {
		return CacheEntry{}, false
	}
	count, err := c.store.IncrementAccess(ctx, key)
	switch {
	case errors.Is(err, ErrEntryNotFound):
		return CacheEntry{}, false
	case err != nil:
		entry.AccessCount++
	default:
		entry.AccessCount = count
	}
	return entry, true
}

// RunSweeper evicts expired entries every interval until ctx ends.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.EvictExpired(ctx); n > 0 {
				c.logger.Debug("cache sweep", "evicted", n)
			}
		}
	}
}
