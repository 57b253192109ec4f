package datacache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
	"github.com/yanqian/ocean-insight/pkg/util"
)

const defaultMaxEntries = 1024

// MemoryStore keeps cache entries in process memory with a bounded
// capacity. On insert at capacity it first drops expired entries, then the
// least recently used one.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	clock      util.Clock
}

// NewMemoryStore constructs a store holding at most maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		clock:      util.NowUTC,
	}
}

// WithClock overrides the time source used for capacity eviction.
func (s *MemoryStore) WithClock(clock util.Clock) *MemoryStore {
	s.clock = clock.OrDefault()
	return s
}

// Get implements aggregation.Store.
func (s *MemoryStore) Get(_ context.Context, key string) (aggregation.CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[key]
	if !ok {
		return aggregation.CacheEntry{}, false, nil
	}
	s.order.MoveToFront(el)
	return *el.Value.(*aggregation.CacheEntry), true, nil
}

// Put implements aggregation.Store.
func (s *MemoryStore) Put(_ context.Context, entry aggregation.CacheEntry) error {
	entry.AccessCount = 0
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[entry.Key]; ok {
		*el.Value.(*aggregation.CacheEntry) = entry
		s.order.MoveToFront(el)
		return nil
	}
	if len(s.items) >= s.maxEntries {
		if s.evictExpiredLocked(s.clock()) == 0 {
			s.evictOldestLocked()
		}
	}
	stored := entry
	s.items[entry.Key] = s.order.PushFront(&stored)
	return nil
}

// IncrementAccess implements aggregation.Store.
func (s *MemoryStore) IncrementAccess(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[key]
	if !ok {
		return 0, aggregation.ErrEntryNotFound
	}
	entry := el.Value.(*aggregation.CacheEntry)
	entry.AccessCount++
	return entry.AccessCount, nil
}

// EvictExpired implements aggregation.Store.
func (s *MemoryStore) EvictExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictExpiredLocked(now), nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) evictExpiredLocked(now time.Time) int {
	removed := 0
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*aggregation.CacheEntry)
		if entry.ExpiresAt.Before(now) {
			s.order.Remove(el)
			delete(s.items, entry.Key)
			removed++
		}
		el = prev
	}
	return removed
}

func (s *MemoryStore) evictOldestLocked() {
	el := s.order.Back()
	if el == nil {
		return
	}
	s.order.Remove(el)
	delete(s.items, el.Value.(*aggregation.CacheEntry).Key)
}

var _ aggregation.Store = (*MemoryStore)(nil)
