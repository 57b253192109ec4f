package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

// MemoryStore keeps conversation turns in process. The oldest turns of a
// conversation are dropped beyond maxPerConversation.
type MemoryStore struct {
	mu                 sync.RWMutex
	turns              map[string][]chat.Turn
	maxPerConversation int
}

// NewMemoryStore constructs the store. A non-positive limit keeps 200 turns.
func NewMemoryStore(maxPerConversation int) *MemoryStore {
	if maxPerConversation <= 0 {
		maxPerConversation = 200
	}
	return &MemoryStore{turns: make(map[string][]chat.Turn), maxPerConversation: maxPerConversation}
}

// Append stores turns in order.
func (s *MemoryStore) Append(_ context.Context, turns ...chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, turn := range turns {
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now().UTC()
		}
		list := append(s.turns[turn.ConversationID], turn)
		if over := len(list) - s.maxPerConversation; over > 0 {
			list = append([]chat.Turn(nil), list[over:]...)
		}
		s.turns[turn.ConversationID] = list
	}
	return nil
}

// Recent returns the newest turns of a conversation, oldest first.
func (s *MemoryStore) Recent(_ context.Context, conversationID string, limit int) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.turns[conversationID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]chat.Turn(nil), list...), nil
}

var _ chat.HistoryStore = (*MemoryStore)(nil)
