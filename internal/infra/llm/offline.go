package llm

import (
	"context"
	"strings"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

// OfflineName is reported as the model when no API key is configured.
const OfflineName = "offline"

// OfflineGenerator answers without a language model by restating the data
// section of the prompt. It keeps the service usable in local development.
type OfflineGenerator struct{}

func (OfflineGenerator) Name() string { return OfflineName }

// Generate returns the ocean data block and the question.
func (OfflineGenerator) Generate(_ context.Context, prompt string) (chat.Completion, error) {
	data := section(prompt, "## Ocean data")
	question := section(prompt, "## Question")
	var b strings.Builder
	b.WriteString("No language model is configured, so here is the data gathered for your question")
	if question != "" {
		b.WriteString(" \"" + question + "\"")
	}
	b.WriteString(".\n")
	if data != "" {
		b.WriteString(data)
	}
	return chat.Completion{Text: b.String()}, nil
}

// section returns the body under a "## " heading up to the next one.
func section(prompt, heading string) string {
	start := strings.Index(prompt, heading)
	if start < 0 {
		return ""
	}
	body := prompt[start+len(heading):]
	if end := strings.Index(body, "\n## "); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

var _ chat.Generator = OfflineGenerator{}
