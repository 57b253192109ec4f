package queue

import (
	"context"
	"sync"
)

// ImmediateQueue hands each job to the handler in its own goroutine.
type ImmediateQueue struct {
	mu      sync.RWMutex
	handler Handler
	wg      sync.WaitGroup
}

// NewImmediateQueue constructs the queue.
func NewImmediateQueue(handler Handler) *ImmediateQueue {
	return &ImmediateQueue{handler: handler}
}

// SetHandler replaces the handler used for queued jobs.
func (q *ImmediateQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()
}

// Enqueue invokes the handler asynchronously. The job outlives the
// enqueuing request, so it runs detached from ctx cancellation.
func (q *ImmediateQueue) Enqueue(ctx context.Context, name string, payload any) error {
	typed, ok := payload.(map[string]any)
	if !ok {
		typed = map[string]any{}
	}
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return nil
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		handler(context.WithoutCancel(ctx), name, typed)
	}()
	return nil
}

// Wait blocks until every enqueued job has finished.
func (q *ImmediateQueue) Wait() {
	q.wg.Wait()
}

var _ HandlerQueue = (*ImmediateQueue)(nil)
