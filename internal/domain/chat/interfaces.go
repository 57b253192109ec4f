package chat

import (
	"context"

	"github.com/yanqian/ocean-insight/pkg/metrics"
)

// Completion is a single-shot generator result.
type Completion struct {
	Text  string
	Usage metrics.TokenUsage
}

// Generator turns a prompt into text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (Completion, error)
}

// StreamingGenerator can also yield text incrementally.
type StreamingGenerator interface {
	Generator
	Stream(ctx context.Context, prompt string) (ChunkStream, error)
}

// ChunkStream yields generated text in order. Recv returns io.EOF after the
// last chunk.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// UsageReporter is implemented by streams whose provider reports token
// usage. Usage is read once Recv has returned io.EOF.
type UsageReporter interface {
	Usage() metrics.TokenUsage
}

// HistoryStore persists conversation turns.
type HistoryStore interface {
	Append(ctx context.Context, turns ...Turn) error
	// Recent returns up to limit turns of a conversation, oldest first.
	Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error)
}

// TokenCounter estimates prompt tokens.
type TokenCounter interface {
	Count(text string) int
}

// JobQueue enqueues background work.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// ObjectStorage stores archived snapshots.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}
