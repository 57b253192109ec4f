package chat

import (
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/domain/query"
	"github.com/yanqian/ocean-insight/pkg/metrics"
)

// Request is an inbound research question.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Context        string `json:"context,omitempty"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted conversation message.
type Turn struct {
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	TokenCount     int       `json:"tokenCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Reference cites the provider behind a live dataset.
type Reference struct {
	Domain ocean.Domain `json:"domain"`
	Label  string       `json:"label"`
	URL    string       `json:"url,omitempty"`
}

// EventKind discriminates StreamEvent.
type EventKind string

const (
	EventContent  EventKind = "content"
	EventMetadata EventKind = "metadata"
	EventDone     EventKind = "done"
	EventError    EventKind = "error"
)

// Terminal reports whether the kind ends a stream.
func (k EventKind) Terminal() bool {
	return k == EventDone || k == EventError
}

// Meta is the payload of a metadata event. Exactly one field is set.
type Meta struct {
	OceanData  *ocean.AggregatedDataset `json:"oceanData,omitempty"`
	ModelUsed  string                   `json:"modelUsed,omitempty"`
	References []Reference              `json:"references,omitempty"`
}

// StreamEvent is one element of a response stream. It carries no wire
// format; transports encode it.
type StreamEvent struct {
	Kind   EventKind
	Text   string
	Meta   *Meta
	Reason string
	// Err is the cause behind an error event, for diagnostics only.
	Err error
}

// Response is the single-shot answer.
type Response struct {
	Response       string                   `json:"response"`
	OceanData      *ocean.AggregatedDataset `json:"oceanData"`
	Model          string                   `json:"model"`
	Mode           query.Mode               `json:"context"`
	Timestamp      time.Time                `json:"timestamp"`
	ConversationID string                   `json:"conversationId"`
	References     []Reference              `json:"references,omitempty"`
	Usage          *metrics.TokenUsage      `json:"tokenUsage,omitempty"`
}

// Inspection is the data-only view of a query: what was understood and
// what was fetched, without generation.
type Inspection struct {
	Region         ocean.Region            `json:"region"`
	Classification query.Classification    `json:"classification"`
	OceanData      ocean.AggregatedDataset `json:"oceanData"`
}
