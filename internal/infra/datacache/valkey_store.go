package datacache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
)

const (
	fieldPayload = "payload"
	fieldHits    = "hits"
)

// incrementIfPresent bumps the hit counter without resurrecting an entry
// that expired between GET and INCR.
var incrementIfPresent = valkey.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
end
return -1
`)

// ValkeyStore keeps cache entries in a Valkey-compatible database. Each
// entry is a hash holding the encoded payload and a hit counter, expired by
// the server.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a store that namespaces keys with prefix.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "ocean:cache"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Get implements aggregation.Store.
func (s *ValkeyStore) Get(ctx context.Context, key string) (aggregation.CacheEntry, bool, error) {
	cmd := s.client.B().Hmget().Key(s.entryKey(key)).Field(fieldPayload, fieldHits).Build()
	values, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return aggregation.CacheEntry{}, false, nil
		}
		return aggregation.CacheEntry{}, false, err
	}
	if len(values) != 2 {
		return aggregation.CacheEntry{}, false, nil
	}
	payload, err := values[0].ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return aggregation.CacheEntry{}, false, nil
		}
		return aggregation.CacheEntry{}, false, err
	}
	entry, err := decodeEntry([]byte(payload))
	if err != nil {
		return aggregation.CacheEntry{}, false, err
	}
	if hits, err := values[1].ToString(); err == nil {
		entry.AccessCount, _ = strconv.ParseInt(hits, 10, 64)
	}
	return entry, true, nil
}

// Put implements aggregation.Store.
func (s *ValkeyStore) Put(ctx context.Context, entry aggregation.CacheEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	payload, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	key := s.entryKey(entry.Key)
	cmds := valkey.Commands{
		s.client.B().Del().Key(key).Build(),
		s.client.B().Hset().Key(key).FieldValue().FieldValue(fieldPayload, valkey.BinaryString(payload)).FieldValue(fieldHits, "0").Build(),
		s.client.B().Expire().Key(key).Seconds(int64(ttl / time.Second)).Build(),
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("store cache entry: %w", err)
		}
	}
	return nil
}

// IncrementAccess implements aggregation.Store.
func (s *ValkeyStore) IncrementAccess(ctx context.Context, key string) (int64, error) {
	count, err := incrementIfPresent.Exec(ctx, s.client, []string{s.entryKey(key)}, []string{fieldHits}).AsInt64()
	if err != nil {
		return 0, err
	}
	if count < 0 {
		return 0, aggregation.ErrEntryNotFound
	}
	return count, nil
}

// EvictExpired implements aggregation.Store. Valkey expires keys itself.
func (s *ValkeyStore) EvictExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *ValkeyStore) entryKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

var _ aggregation.Store = (*ValkeyStore)(nil)
