package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
	"github.com/yanqian/ocean-insight/internal/infra/llm/chatgpt"
	"github.com/yanqian/ocean-insight/pkg/metrics"
)

// ChatClient is the subset of the chatgpt client used by generators.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.Stream, error)
}

// ChatGPTGenerator adapts one model of an OpenAI compatible API to the chat
// domain.
type ChatGPTGenerator struct {
	client      ChatClient
	model       string
	temperature float32
}

// NewChatGPTGenerator constructs the adapter.
func NewChatGPTGenerator(client ChatClient, model string, temperature float32) *ChatGPTGenerator {
	return &ChatGPTGenerator{client: client, model: model, temperature: temperature}
}

// NewGeneratorChain builds one generator per distinct model, primary first.
func NewGeneratorChain(client ChatClient, primary string, fallbacks []string, temperature float32) []chat.Generator {
	seen := make(map[string]struct{})
	var chain []chat.Generator
	for _, model := range append([]string{primary}, fallbacks...) {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		if _, dup := seen[model]; dup {
			continue
		}
		seen[model] = struct{}{}
		chain = append(chain, NewChatGPTGenerator(client, model, temperature))
	}
	return chain
}

func (g *ChatGPTGenerator) Name() string { return g.model }

func (g *ChatGPTGenerator) request(prompt string) chatgpt.ChatCompletionRequest {
	return chatgpt.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages:    []chatgpt.Message{{Role: "user", Content: prompt}},
	}
}

// Generate sends a chat completion request.
func (g *ChatGPTGenerator) Generate(ctx context.Context, prompt string) (chat.Completion, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt))
	if err != nil {
		return chat.Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return chat.Completion{}, fmt.Errorf("model %s returned no choices", g.model)
	}
	return chat.Completion{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: metrics.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream starts a streaming completion.
func (g *ChatGPTGenerator) Stream(ctx context.Context, prompt string) (chat.ChunkStream, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(prompt))
	if err != nil {
		return nil, err
	}
	return &deltaStream{stream: stream}, nil
}

// deltaStream flattens completion frames into text deltas, skipping frames
// that carry none.
type deltaStream struct {
	stream chatgpt.Stream
	usage  metrics.TokenUsage
}

func (s *deltaStream) Recv() (string, error) {
	for {
		frame, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if frame.Usage != nil {
			s.usage = metrics.TokenUsage{
				PromptTokens:     frame.Usage.PromptTokens,
				CompletionTokens: frame.Usage.CompletionTokens,
				TotalTokens:      frame.Usage.TotalTokens,
			}
		}
		var b strings.Builder
		for _, choice := range frame.Choices {
			b.WriteString(choice.Delta.Content)
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
}

// Usage returns the usage frame the provider sent, if any.
func (s *deltaStream) Usage() metrics.TokenUsage {
	return s.usage
}

func (s *deltaStream) Close() error {
	return s.stream.Close()
}

var (
	_ chat.StreamingGenerator = (*ChatGPTGenerator)(nil)
	_ chat.ChunkStream        = (*deltaStream)(nil)
	_ chat.UsageReporter      = (*deltaStream)(nil)
)
