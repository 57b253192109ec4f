package queue

import (
	"context"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

// Handler executes one delivered job.
type Handler func(ctx context.Context, name string, payload map[string]any)

// HandlerQueue supports setting a handler for job delivery.
type HandlerQueue interface {
	chat.JobQueue
	SetHandler(handler Handler)
}
