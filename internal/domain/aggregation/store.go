package aggregation

import (
	"context"
	"errors"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

var (
	// ErrCacheUnavailable wraps store failures. The cache absorbs it and
	// behaves as if the lookup missed.
	ErrCacheUnavailable = errors.New("aggregation cache unavailable")
	// ErrEntryNotFound is returned by stores when a key is absent.
	ErrEntryNotFound = errors.New("cache entry not found")
)

// CacheEntry is one cached dataset.
type CacheEntry struct {
	Key         string        `json:"key"`
	Dataset     ocean.Dataset `json:"dataset"`
	SourceLabel string        `json:"sourceLabel"`
	FetchedAt   time.Time     `json:"fetchedAt"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	AccessCount int64         `json:"accessCount"`
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is the persistence boundary behind the cache. Implementations only
// need get-by-key, put-with-expiry and an atomic counter.
type Store interface {
	// Get returns the entry for key. Expired entries may be returned; the
	// cache decides freshness.
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	// Put stores entry until entry.ExpiresAt, resetting its access count.
	Put(ctx context.Context, entry CacheEntry) error
	// IncrementAccess atomically bumps the access count and returns the
	// new value, or ErrEntryNotFound.
	IncrementAccess(ctx context.Context, key string) (int64, error)
	// EvictExpired removes entries with ExpiresAt before now.
	EvictExpired(ctx context.Context, now time.Time) (int, error)
}
