package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/askbot/internal/config"
)

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()

	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Hello there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 2}
		}`))
	}))
	t.Cleanup(srv.Close)

	c := NewAnthropic(config.LLMConfig{APIKey: "key", BaseURL: srv.URL, Model: "claude-test", MaxTokens: 64},
		testLogger(), option.WithMaxRetries(0))

	got, err := c.Complete(t.Context(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", got)

	assert.Equal(t, "claude-test", req["model"])
	assert.EqualValues(t, 64, req["max_tokens"])
	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
	system, ok := req["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
}

func TestAnthropicPromptTooLong(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "prompt is too long: 210000 tokens > 200000 maximum"}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewAnthropic(config.LLMConfig{APIKey: "key", BaseURL: srv.URL, Model: "m", MaxTokens: 16},
		testLogger(), option.WithMaxRetries(0))

	_, err := c.Complete(t.Context(), []Message{{Role: RoleUser, Content: "q"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContextLengthExceeded)
}
