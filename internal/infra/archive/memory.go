package archive

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

// MemoryStorage keeps archived snapshots in memory. Useful for tests and
// local dev.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

type blob struct {
	data     []byte
	mimeType string
}

// NewMemoryStorage constructs storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string]blob)}
}

// Put stores the blob and returns metadata.
func (s *MemoryStorage) Put(_ context.Context, key string, data []byte, mimeType string) (chat.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := md5.Sum(data)
	s.blobs[key] = blob{data: append([]byte(nil), data...), mimeType: mimeType}
	return chat.StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType, ETag: hex.EncodeToString(sum[:])}, nil
}

// Get returns a stored blob.
func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	return b.data, ok
}

// Keys lists stored keys.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys
}

var _ chat.ObjectStorage = (*MemoryStorage)(nil)
