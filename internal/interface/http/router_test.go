package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/domain/query"
	"github.com/yanqian/ocean-insight/internal/infra/config"
	apperrors "github.com/yanqian/ocean-insight/pkg/errors"
	"github.com/yanqian/ocean-insight/pkg/metrics"
)

func TestRouter_ChatStreamSuccess(t *testing.T) {
	data := ocean.NewAggregatedDataset(ocean.Region{Name: "Mumbai"})
	svc := &stubChat{
		streamFn: func(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
			require.Equal(t, "tides near Mumbai", req.Message)
			return feed(
				chat.StreamEvent{Kind: chat.EventMetadata, Meta: &chat.Meta{OceanData: &data}},
				chat.StreamEvent{Kind: chat.EventMetadata, Meta: &chat.Meta{ModelUsed: "gpt-4o-mini"}},
				chat.StreamEvent{Kind: chat.EventContent, Text: "High water "},
				chat.StreamEvent{Kind: chat.EventContent, Text: "at noon."},
				chat.StreamEvent{Kind: chat.EventDone},
			), nil
		},
	}

	recorder := performRequest("/api/v1/chat/stream", `{"message":"tides near Mumbai"}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))

	frames := splitFrames(t, recorder.Body.String())
	require.Len(t, frames, 5)
	require.Contains(t, frames[0], `"oceanData"`)
	require.JSONEq(t, `{"meta":{"modelUsed":"gpt-4o-mini"}}`, frames[1])
	require.JSONEq(t, `{"chunk":"High water "}`, frames[2])
	require.JSONEq(t, `{"chunk":"at noon."}`, frames[3])
	require.Equal(t, doneSentinel, frames[4])
}

func TestRouter_ChatStreamErrorIsTerminal(t *testing.T) {
	svc := &stubChat{
		streamFn: func(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
			return feed(
				chat.StreamEvent{Kind: chat.EventMetadata, Meta: &chat.Meta{ModelUsed: "gpt-4o-mini"}},
				chat.StreamEvent{Kind: chat.EventError, Reason: "generation failed", Err: errors.New("upstream reset")},
			), nil
		},
	}

	recorder := performRequest("/api/v1/chat/stream", `{"message":"hi"}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	frames := splitFrames(t, recorder.Body.String())
	require.Len(t, frames, 2)
	require.JSONEq(t, `{"error":"generation failed"}`, frames[1])
	require.NotContains(t, recorder.Body.String(), doneSentinel)
}

func TestRouter_ChatStreamErrorDetailsInDevelopment(t *testing.T) {
	svc := &stubChat{
		streamFn: func(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
			return feed(chat.StreamEvent{Kind: chat.EventError, Reason: "language model unavailable", Err: errors.New("dial tcp: refused")}), nil
		},
	}

	server := newRouterUnderTest(t, svc, func(cfg *config.Config) { cfg.App.Env = "development" })
	recorder := performRequest("/api/v1/chat/stream", `{"message":"hi"}`, server)

	frames := splitFrames(t, recorder.Body.String())
	require.Len(t, frames, 1)
	require.JSONEq(t, `{"error":"language model unavailable","details":"dial tcp: refused"}`, frames[0])
}

func TestRouter_ChatStreamInvalidInput(t *testing.T) {
	svc := &stubChat{
		streamFn: func(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "message cannot be empty", nil)
		},
	}

	recorder := performRequest("/api/v1/chat/stream", `{"message":""}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Header().Get("Content-Type"), "application/json")

	body := decodeChatFailure(t, recorder.Body.Bytes())
	require.False(t, body.Success)
	require.Equal(t, "message cannot be empty", body.Error)
	require.Empty(t, body.Details)
}

func TestRouter_ChatSuccess(t *testing.T) {
	data := ocean.NewAggregatedDataset(ocean.Region{Name: "Gulf of Maine"})
	stamp := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := &stubChat{
		respondFn: func(ctx context.Context, req chat.Request) (chat.Response, error) {
			require.Equal(t, "research", req.Context)
			return chat.Response{
				Response:       "Surface water is 11.2 C.",
				OceanData:      &data,
				Model:          "gpt-4o-mini",
				Mode:           query.ModeResearch,
				Timestamp:      stamp,
				ConversationID: "conv-1",
				Usage:          &metrics.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
	}

	recorder := performRequest("/api/v1/chat", `{"message":"temperature in the Gulf of Maine","context":"research"}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got struct {
		Success   bool            `json:"success"`
		Response  string          `json:"response"`
		OceanData json.RawMessage `json:"oceanData"`
		Metadata  struct {
			Model          string    `json:"model"`
			Context        string    `json:"context"`
			Timestamp      time.Time `json:"timestamp"`
			ConversationID string    `json:"conversationId"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.True(t, got.Success)
	require.Equal(t, "Surface water is 11.2 C.", got.Response)
	require.NotEqual(t, "null", string(got.OceanData))
	require.Equal(t, "gpt-4o-mini", got.Metadata.Model)
	require.Equal(t, "research", got.Metadata.Context)
	require.True(t, stamp.Equal(got.Metadata.Timestamp))
	require.Equal(t, "conv-1", got.Metadata.ConversationID)
}

func TestRouter_ChatFailureStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", apperrors.Wrap(apperrors.CodeInvalidInput, "message cannot be empty", nil), http.StatusBadRequest},
		{"unavailable", apperrors.Wrap(apperrors.CodeGeneratorUnavailable, "language model unavailable", errors.New("refused")), http.StatusServiceUnavailable},
		{"generation", apperrors.Wrap(apperrors.CodeGeneratorError, "generation failed", nil), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubChat{
				respondFn: func(ctx context.Context, req chat.Request) (chat.Response, error) {
					return chat.Response{}, tc.err
				},
			}
			recorder := performRequest("/api/v1/chat", `{"message":"hi"}`, newRouterUnderTest(t, svc, nil))
			require.Equal(t, tc.status, recorder.Code)

			body := decodeChatFailure(t, recorder.Body.Bytes())
			require.False(t, body.Success)
			require.Equal(t, apperrors.MessageOf(tc.err), body.Error)
			require.Empty(t, body.Details)
		})
	}
}

func TestRouter_ChatRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	svc := &stubChat{
		respondFn: func(ctx context.Context, req chat.Request) (chat.Response, error) {
			require.Equal(t, "retry me", req.Message)
			if calls.Add(1) == 1 {
				return chat.Response{}, apperrors.Wrap(apperrors.CodeGeneratorError, "generation failed", nil)
			}
			return chat.Response{Response: "ok", Model: "gpt-4o-mini", Mode: query.ModeAnalysis}, nil
		},
	}

	server := newRouterUnderTest(t, svc, func(cfg *config.Config) {
		cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond}
	})
	recorder := performRequest("/api/v1/chat", `{"message":"retry me"}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.EqualValues(t, 2, calls.Load())
}

func TestRouter_StreamIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	svc := &stubChat{
		streamFn: func(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
			calls.Add(1)
			return nil, apperrors.Wrap(apperrors.CodeGeneratorUnavailable, "language model unavailable", nil)
		},
	}

	server := newRouterUnderTest(t, svc, func(cfg *config.Config) {
		cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond, Exclude: []string{"/api/v1/chat/stream"}}
	})
	recorder := performRequest("/api/v1/chat/stream", `{"message":"hi"}`, server)
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.EqualValues(t, 1, calls.Load())
}

func TestRouter_OceanQuery(t *testing.T) {
	svc := &stubChat{
		inspectFn: func(ctx context.Context, req chat.Request) (chat.Inspection, error) {
			return chat.Inspection{
				Region:    ocean.Region{Name: "Mumbai"},
				OceanData: ocean.NewAggregatedDataset(ocean.Region{Name: "Mumbai"}),
			}, nil
		},
	}

	recorder := performRequest("/api/v1/ocean/query", `{"message":"tides near Mumbai"}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Contains(t, got, "region")
	require.Contains(t, got, "classification")
	require.Contains(t, got, "oceanData")
}

func TestRouter_OceanQueryInvalidInput(t *testing.T) {
	svc := &stubChat{
		inspectFn: func(ctx context.Context, req chat.Request) (chat.Inspection, error) {
			return chat.Inspection{}, apperrors.Wrap(apperrors.CodeInvalidInput, "message cannot be empty", nil)
		},
	}

	recorder := performRequest("/api/v1/ocean/query", `{"message":" "}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.Equal(t, "message cannot be empty", errBody["error"]["message"])
}

func TestRouter_OceanQueryMalformedJSON(t *testing.T) {
	recorder := performRequest("/api/v1/ocean/query", `{"message":123}`, newRouterUnderTest(t, &stubChat{}, nil))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_RateLimit(t *testing.T) {
	svc := &stubChat{
		respondFn: func(ctx context.Context, req chat.Request) (chat.Response, error) {
			return chat.Response{Response: "ok"}, nil
		},
	}
	server := newRouterUnderTest(t, svc, func(cfg *config.Config) {
		cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	})

	require.Equal(t, http.StatusOK, performRequest("/api/v1/chat", `{"message":"one"}`, server).Code)
	recorder := performRequest("/api/v1/chat", `{"message":"two"}`, server)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "rate_limit_exceeded", errBody["error"]["code"])
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	server := newRouterUnderTest(t, &stubChat{}, nil)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, &stubChat{}, func(cfg *config.Config) {
		cfg.HTTP.AllowedOrigins = []string{"https://ocean.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat/stream", nil)
	req.Header.Set("Origin", "https://ocean.example")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://ocean.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/chat/stream", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func performRequest(path, body string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, svc chat.Service, mutate func(*config.Config)) *http.Server {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "production"},
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	logger := newTestLogger()
	handler := NewHandler(cfg, svc, logger)
	return NewRouter(cfg, handler, metrics.NewRecorder(), logger)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func feed(events ...chat.StreamEvent) <-chan chat.StreamEvent {
	ch := make(chan chat.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func splitFrames(t *testing.T, body string) []string {
	t.Helper()
	raw := strings.Split(strings.TrimSpace(body), "\n\n")
	frames := make([]string, 0, len(raw))
	for _, frame := range raw {
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		frames = append(frames, strings.TrimPrefix(frame, "data: "))
	}
	return frames
}

type stubChat struct {
	streamFn  func(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error)
	respondFn func(ctx context.Context, req chat.Request) (chat.Response, error)
	inspectFn func(ctx context.Context, req chat.Request) (chat.Inspection, error)
}

func (s *stubChat) Stream(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
	if s.streamFn != nil {
		return s.streamFn(ctx, req)
	}
	return feed(chat.StreamEvent{Kind: chat.EventDone}), nil
}

func (s *stubChat) Respond(ctx context.Context, req chat.Request) (chat.Response, error) {
	if s.respondFn != nil {
		return s.respondFn(ctx, req)
	}
	return chat.Response{}, nil
}

func (s *stubChat) Inspect(ctx context.Context, req chat.Request) (chat.Inspection, error) {
	if s.inspectFn != nil {
		return s.inspectFn(ctx, req)
	}
	return chat.Inspection{}, nil
}

func (s *stubChat) HandleJob(ctx context.Context, name string, payload map[string]any) error {
	return nil
}

func decodeChatFailure(t *testing.T, raw []byte) chatFailure {
	t.Helper()
	var body chatFailure
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
