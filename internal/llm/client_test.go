package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/droidagent/internal/config"
)

func shortenRetryDelays(t *testing.T) {
	t.Helper()
	saved := retryDelays
	retryDelays = []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	t.Cleanup(func() { retryDelays = saved })
}

func testClient(url string, maxRetries int) *Client {
	return NewClient(config.ModelConfig{
		BaseURL:     url,
		APIKey:      "test-key",
		Name:        "qwen3-coder:480b",
		Temperature: 0.7,
		MaxRetries:  maxRetries,
	})
}

func completionBody(content string) string {
	return fmt.Sprintf(`{
		"model": "qwen3-coder:480b",
		"choices": [{"message": {"content": %q}}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
	}`, content)
}

func TestChat_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen3-coder:480b", req["model"])
		assert.Equal(t, false, req["stream"])

		fmt.Fprint(w, completionBody(`{"t":"tap","p":{"ei":2}}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL, 3).Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "you control a phone"},
		{Role: RoleUser, Content: "open settings"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"t":"tap","p":{"ei":2}}`, resp.Content)
	assert.Equal(t, 150, resp.Usage.TotalTokens)
	assert.Equal(t, 120, resp.Usage.PromptTokens)
}

func TestChat_RetriesThenSucceeds(t *testing.T) {
	shortenRetryDelays(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, completionBody("ok"))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL, 3).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChat_ExhaustsRetries(t *testing.T) {
	shortenRetryDelays(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(3), calls.Load())
}

func TestChat_NoChoices(t *testing.T) {
	shortenRetryDelays(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestChat_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL, 5).Chat(ctx, []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"hel"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"lo"}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	var deltas []string
	resp, err := testClient(srv.URL, 0).ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, []string{"hel", "lo"}, deltas)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestChatStream_BadChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "data: not json\n\n")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil)
	assert.Error(t, err)
}
