package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/domain/query"
)

// JobArchiveSnapshot stores the aggregated dataset behind a research answer.
const JobArchiveSnapshot = "archive_snapshot"

// Snapshot is the archived record of one research answer's data.
type Snapshot struct {
	ID             string                  `json:"id"`
	ConversationID string                  `json:"conversationId"`
	Question       string                  `json:"question"`
	Mode           query.Mode              `json:"mode"`
	CreatedAt      time.Time               `json:"createdAt"`
	OceanData      ocean.AggregatedDataset `json:"oceanData"`
}

// Key is the object storage key of the snapshot.
func (s Snapshot) Key() string {
	return fmt.Sprintf("snapshots/%s/%s.json", s.CreatedAt.UTC().Format("2006/01/02"), s.ID)
}

func (s *service) enqueueSnapshot(ctx context.Context, p prepared) {
	if s.queue == nil || s.storage == nil {
		return
	}
	snap := Snapshot{
		ID:             uuid.NewString(),
		ConversationID: p.conversationID,
		Question:       p.req.Message,
		Mode:           p.mode,
		CreatedAt:      p.now,
		OceanData:      p.data,
	}
	payload := map[string]any{"key": snap.Key(), "snapshot": snap}
	if err := s.queue.Enqueue(ctx, JobArchiveSnapshot, payload); err != nil {
		s.logger.Warn("enqueue archive_snapshot failed", "conversation_id", p.conversationID, "error", err)
	}
}

func (s *service) HandleJob(ctx context.Context, name string, payload map[string]any) error {
	switch name {
	case JobArchiveSnapshot:
		return s.archiveSnapshot(ctx, payload)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

// archiveSnapshot writes the snapshot as JSON. The payload arrives either as
// the enqueued map or decoded from a persisted queue, so the snapshot is
// re-encoded rather than type asserted.
func (s *service) archiveSnapshot(ctx context.Context, payload map[string]any) error {
	if s.storage == nil {
		return nil
	}
	key, _ := payload["key"].(string)
	if key == "" {
		return fmt.Errorf("archive_snapshot: missing key")
	}
	body, err := json.MarshalIndent(payload["snapshot"], "", "  ")
	if err != nil {
		return fmt.Errorf("archive_snapshot: encode: %w", err)
	}
	obj, err := s.storage.Put(ctx, key, body, "application/json")
	if err != nil {
		return fmt.Errorf("archive_snapshot: store %s: %w", key, err)
	}
	s.logger.Info("research snapshot archived", "key", obj.Key, "bytes", obj.Size)
	return nil
}
