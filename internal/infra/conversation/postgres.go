package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id              BIGSERIAL PRIMARY KEY,
	conversation_id TEXT        NOT NULL,
	role            TEXT        NOT NULL,
	content         TEXT        NOT NULL,
	token_count     INTEGER     NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversation_turns_conversation_idx
	ON conversation_turns (conversation_id, created_at DESC, id DESC);
`

// PostgresStore persists conversation turns in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs the adapter.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the turns table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create conversation schema: %w", err)
	}
	return nil
}

// Append inserts turns in one batch.
func (s *PostgresStore) Append(ctx context.Context, turns ...chat.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, turn := range turns {
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO conversation_turns (conversation_id, role, content, token_count, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, turn.ConversationID, string(turn.Role), turn.Content, turn.TokenCount, turn.CreatedAt)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

// Recent returns the newest turns of a conversation, oldest first.
func (s *PostgresStore) Recent(ctx context.Context, conversationID string, limit int) ([]chat.Turn, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, role, content, token_count, created_at
		FROM conversation_turns
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := make([]chat.Turn, 0, limit)
	for rows.Next() {
		var (
			turn chat.Turn
			role string
		)
		if err := rows.Scan(&turn.ConversationID, &role, &turn.Content, &turn.TokenCount, &turn.CreatedAt); err != nil {
			return nil, err
		}
		turn.Role = chat.Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

var _ chat.HistoryStore = (*PostgresStore)(nil)
