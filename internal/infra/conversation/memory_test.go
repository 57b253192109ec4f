package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

func TestMemoryStoreRecent(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx,
		chat.Turn{ConversationID: "a", Role: chat.RoleUser, Content: "q1"},
		chat.Turn{ConversationID: "a", Role: chat.RoleAssistant, Content: "a1"},
		chat.Turn{ConversationID: "b", Role: chat.RoleUser, Content: "other"},
		chat.Turn{ConversationID: "a", Role: chat.RoleUser, Content: "q2"},
	))

	turns, err := store.Recent(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "a1", turns[0].Content)
	require.Equal(t, "q2", turns[1].Content)
	require.False(t, turns[0].CreatedAt.IsZero())

	none, err := store.Recent(ctx, "missing", 5)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemoryStoreCapsConversation(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, chat.Turn{ConversationID: "a", Content: fmt.Sprint(i)}))
	}
	turns, err := store.Recent(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "2", turns[0].Content)
}
