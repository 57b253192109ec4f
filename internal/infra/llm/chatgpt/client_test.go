package chatgpt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, req.Stream)
		_, _ = w.Write([]byte(`{"model":"gpt-4o","choices":[{"message":{"role":"assistant","content":"hi"}}],"usage":{"total_tokens":7}}`))
	}))
	defer srv.Close()

	client, err := NewClient("key", srv.URL, 0)
	require.NoError(t, err)
	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Choices[0].Message.Content)
	require.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestCreateChatCompletionStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient("key", srv.URL, 0)
	require.NoError(t, err)
	_, err = client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "gpt-4o"})
	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusServiceUnavailable, status.StatusCode)
	require.Equal(t, "overloaded", status.Body)
}

func TestCreateChatCompletionStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)
		require.NotNil(t, req.StreamOptions)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		_, _ = io.WriteString(w, ": keep-alive\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client, err := NewClient("key", srv.URL, 0)
	require.NoError(t, err)
	stream, err := client.CreateChatCompletionStream(context.Background(), ChatCompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	defer stream.Close()

	var text string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		text += chunk.Choices[0].Delta.Content
	}
	require.Equal(t, "Hello", text)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(" ", "", 0)
	require.Error(t, err)
}
