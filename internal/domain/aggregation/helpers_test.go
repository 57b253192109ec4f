package aggregation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

type mapStore struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	fail    atomic.Bool
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string]CacheEntry)}
}

var errStoreDown = errors.New("store down")

func (s *mapStore) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	if s.fail.Load() {
		return CacheEntry{}, false, errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *mapStore) Put(_ context.Context, entry CacheEntry) error {
	if s.fail.Load() {
		return errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.AccessCount = 0
	s.entries[entry.Key] = entry
	return nil
}

func (s *mapStore) IncrementAccess(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return 0, ErrEntryNotFound
	}
	entry.AccessCount++
	s.entries[key] = entry
	return entry.AccessCount, nil
}

func (s *mapStore) EvictExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if e.ExpiresAt.Before(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// stallingStore pauses one armed Get after it has read the entry, so the
// caller acts on a stale snapshot.
type stallingStore struct {
	*mapStore
	armed    atomic.Bool
	stalled  chan struct{}
	duration time.Duration
}

func newStallingStore(d time.Duration) *stallingStore {
	return &stallingStore{mapStore: newMapStore(), stalled: make(chan struct{}), duration: d}
}

func (s *stallingStore) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	entry, ok, err := s.mapStore.Get(ctx, key)
	if s.armed.CompareAndSwap(true, false) {
		close(s.stalled)
		time.Sleep(s.duration)
	}
	return entry, ok, err
}

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubAdapter is a scripted source adapter.
type stubAdapter struct {
	domain ocean.Domain
	calls  atomic.Int32
	fetch  func(ctx context.Context, req ocean.DataRequest) (ocean.Dataset, error)
}

func (a *stubAdapter) Domain() ocean.Domain { return a.domain }
func (a *stubAdapter) Label() string        { return "stub " + string(a.domain) }

func (a *stubAdapter) Fetch(ctx context.Context, req ocean.DataRequest) (ocean.Dataset, error) {
	a.calls.Add(1)
	return a.fetch(ctx, req)
}

func (a *stubAdapter) Fallback(req ocean.DataRequest) ocean.Dataset {
	return ocean.FallbackDataset(req)
}

func succeeding(domain ocean.Domain) *stubAdapter {
	return &stubAdapter{domain: domain, fetch: func(_ context.Context, req ocean.DataRequest) (ocean.Dataset, error) {
		ds := ocean.FallbackDataset(req)
		ds.SourceURL = "https://example.test/" + string(domain)
		return ds, nil
	}}
}

func failing(domain ocean.Domain) *stubAdapter {
	return &stubAdapter{domain: domain, fetch: func(context.Context, ocean.DataRequest) (ocean.Dataset, error) {
		return ocean.Dataset{}, ocean.NewUnavailable(domain, "status 503", nil)
	}}
}

// hanging blocks until its context ends, like an unresponsive provider.
func hanging(domain ocean.Domain) *stubAdapter {
	return &stubAdapter{domain: domain, fetch: func(ctx context.Context, _ ocean.DataRequest) (ocean.Dataset, error) {
		<-ctx.Done()
		return ocean.Dataset{}, ocean.NewTimeout(domain, ctx.Err())
	}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testRegion = ocean.Region{
	ID:          "mumbai",
	Name:        "Mumbai",
	BoundingBox: ocean.BoundingBox{North: 19.3, South: 18.8, East: 73.0, West: 72.6},
}

func testRequest(domain ocean.Domain) ocean.DataRequest {
	end := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	return ocean.DataRequest{Domain: domain, Region: testRegion, Window: ocean.TimeWindow{Start: end.Add(-24 * time.Hour), End: end}}
}
