package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/askbot/internal/config"
)

func newOpenAIServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	var req map[string]any
	srv := newOpenAIServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Paris"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 1, "total_tokens": 11}
	}`, &req)

	c := NewOpenAI(config.LLMConfig{APIKey: "key", BaseURL: srv.URL, Model: "gpt-3.5-turbo", Temperature: 1}, testLogger())

	got, err := c.Complete(t.Context(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "capital of France?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", got)

	assert.Equal(t, "gpt-3.5-turbo", req["model"])
	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "capital of France?", msgs[1].(map[string]any)["content"])
}

func TestOpenAIContextLengthExceeded(t *testing.T) {
	t.Parallel()

	srv := newOpenAIServer(t, http.StatusBadRequest, `{"error": {
		"message": "This model's maximum context length is 4097 tokens. However, your messages resulted in 5000 tokens.",
		"type": "invalid_request_error",
		"code": "context_length_exceeded"
	}}`, nil)

	c := NewOpenAI(config.LLMConfig{APIKey: "key", BaseURL: srv.URL, Model: "m"}, testLogger())

	_, err := c.Complete(t.Context(), []Message{{Role: RoleUser, Content: "q"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContextLengthExceeded)
	assert.Contains(t, err.Error(), "maximum context length")
}

func TestOpenAIOtherError(t *testing.T) {
	t.Parallel()

	srv := newOpenAIServer(t, http.StatusUnauthorized, `{"error": {
		"message": "Incorrect API key provided",
		"type": "invalid_request_error",
		"code": "invalid_api_key"
	}}`, nil)

	c := NewOpenAI(config.LLMConfig{APIKey: "bad", BaseURL: srv.URL, Model: "m"}, testLogger())

	_, err := c.Complete(t.Context(), []Message{{Role: RoleUser, Content: "q"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrContextLengthExceeded)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
}

func TestOpenAINoChoices(t *testing.T) {
	t.Parallel()

	srv := newOpenAIServer(t, http.StatusOK, `{"id": "x", "choices": []}`, nil)
	c := NewOpenAI(config.LLMConfig{APIKey: "key", BaseURL: srv.URL, Model: "m"}, testLogger())

	_, err := c.Complete(t.Context(), []Message{{Role: RoleUser, Content: "q"}})
	assert.Error(t, err)
}
