package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/domain/query"
	"github.com/yanqian/ocean-insight/pkg/metrics"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubFetcher marks every planned domain live with its fallback sample,
// except the ones listed in degrade.
type stubFetcher struct {
	mu      sync.Mutex
	plans   []aggregation.Plan
	degrade ocean.DomainSet
}

func (f *stubFetcher) Fetch(_ context.Context, plan aggregation.Plan) ocean.AggregatedDataset {
	f.mu.Lock()
	f.plans = append(f.plans, plan)
	f.mu.Unlock()
	agg := ocean.NewAggregatedDataset(plan.Region)
	for _, req := range plan.Requests() {
		ds := ocean.FallbackDataset(req)
		if f.degrade.Has(req.Domain) {
			agg.MarkDegraded(ds, ocean.FallbackLabel, "timeout: deadline exceeded")
			continue
		}
		ds.SourceURL = "https://example.test/" + string(req.Domain)
		agg.MarkSucceeded(ds, ocean.SourceInfo{Label: "live " + string(req.Domain), FetchedAt: fixedNow})
	}
	return agg
}

func (f *stubFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plans)
}

// textGenerator answers single-shot.
type textGenerator struct {
	name    string
	text    string
	err     error
	prompts chan string
}

func (g *textGenerator) Name() string { return g.name }

func (g *textGenerator) Generate(_ context.Context, prompt string) (Completion, error) {
	if g.prompts != nil {
		g.prompts <- prompt
	}
	if g.err != nil {
		return Completion{}, g.err
	}
	return Completion{Text: g.text}, nil
}

// streamGenerator yields chunks, then recvErr or io.EOF. With block set it
// yields the chunks and then waits for cancellation.
type streamGenerator struct {
	name     string
	chunks   []string
	startErr error
	recvErr  error
	block    bool
	usage    metrics.TokenUsage
}

func (g *streamGenerator) Name() string { return g.name }

func (g *streamGenerator) Generate(context.Context, string) (Completion, error) {
	return Completion{}, errors.New("single-shot not supported")
}

func (g *streamGenerator) Stream(ctx context.Context, _ string) (ChunkStream, error) {
	if g.startErr != nil {
		return nil, g.startErr
	}
	stream := &scriptedStream{ctx: ctx, chunks: g.chunks, err: g.recvErr, block: g.block}
	if !g.usage.IsZero() {
		return &meteredStream{scriptedStream: stream, usage: g.usage}, nil
	}
	return stream, nil
}

// meteredStream reports provider token usage after the last chunk.
type meteredStream struct {
	*scriptedStream
	usage metrics.TokenUsage
}

func (s *meteredStream) Usage() metrics.TokenUsage { return s.usage }

type scriptedStream struct {
	ctx    context.Context
	chunks []string
	err    error
	block  bool
	closed atomic.Bool
}

func (s *scriptedStream) Recv() (string, error) {
	if len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		return chunk, nil
	}
	if s.block {
		<-s.ctx.Done()
		return "", s.ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error {
	s.closed.Store(true)
	return nil
}

type memoryHistory struct {
	mu    sync.Mutex
	turns []Turn
	fail  bool
}

func (h *memoryHistory) Append(_ context.Context, turns ...Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
	return nil
}

func (h *memoryHistory) Recent(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return nil, errors.New("history offline")
	}
	var out []Turn
	for _, t := range h.turns {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (h *memoryHistory) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []string
	last map[string]any
}

func (q *recordingQueue) Enqueue(_ context.Context, name string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, name)
	q.last, _ = payload.(map[string]any)
	return nil
}

func (q *recordingQueue) snapshot() ([]string, map[string]any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.jobs...), q.last
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memoryStorage) Put(_ context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

type fixture struct {
	fetcher *stubFetcher
	history *memoryHistory
	queue   *recordingQueue
	storage *memoryStorage
}

func newTestService(t *testing.T, cfg Config, fetcher aggregation.Fetcher, generators ...Generator) (*service, *fixture) {
	t.Helper()
	fx := &fixture{history: &memoryHistory{}, queue: &recordingQueue{}, storage: &memoryStorage{}}
	if fetcher == nil {
		fx.fetcher = &stubFetcher{}
		fetcher = fx.fetcher
	}
	svc := NewService(cfg, query.NewResolver(), query.NewClassifier(), fetcher, NewAssembler(cfg, nil),
		generators, fx.history, fx.queue, fx.storage, nil, discardLogger()).(*service)
	svc.clock = func() time.Time { return fixedNow }
	return svc, fx
}

// collect drains a stream, failing the test if it does not close.
func collect(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream did not terminate; got %d events", len(out))
		}
	}
}

// requireGrammar checks that exactly one terminal event closes the stream.
func requireGrammar(t *testing.T, events []StreamEvent) StreamEvent {
	t.Helper()
	require.NotEmpty(t, events)
	for _, ev := range events[:len(events)-1] {
		require.False(t, ev.Kind.Terminal(), "terminal event %s before the end", ev.Kind)
	}
	last := events[len(events)-1]
	require.True(t, last.Kind.Terminal())
	return last
}

func contentOf(events []StreamEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind == EventContent {
			out = append(out, ev.Text)
		}
	}
	return out
}

func metas(events []StreamEvent) []Meta {
	var out []Meta
	for _, ev := range events {
		if ev.Kind == EventMetadata {
			out = append(out, *ev.Meta)
		}
	}
	return out
}

// hangingAdapter never answers before its context ends.
type hangingAdapter struct {
	domain ocean.Domain
}

func (a hangingAdapter) Domain() ocean.Domain { return a.domain }
func (a hangingAdapter) Label() string        { return "unresponsive " + string(a.domain) }

func (a hangingAdapter) Fetch(ctx context.Context, _ ocean.DataRequest) (ocean.Dataset, error) {
	<-ctx.Done()
	return ocean.Dataset{}, ocean.NewTimeout(a.domain, ctx.Err())
}

func (a hangingAdapter) Fallback(req ocean.DataRequest) ocean.Dataset {
	return ocean.FallbackDataset(req)
}

type testStore struct {
	mu      sync.Mutex
	entries map[string]aggregation.CacheEntry
}

func newTestStore() *testStore {
	return &testStore{entries: make(map[string]aggregation.CacheEntry)}
}

func (s *testStore) Get(_ context.Context, key string) (aggregation.CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *testStore) Put(_ context.Context, entry aggregation.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
	return nil
}

func (s *testStore) IncrementAccess(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, aggregation.ErrEntryNotFound
	}
	e.AccessCount++
	s.entries[key] = e
	return e.AccessCount, nil
}

func (s *testStore) EvictExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
