package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/edgard/askbot/internal/config"
)

// OpenAI implements Completer with the OpenAI chat completions API or any
// API compatible with it.
type OpenAI struct {
	client *gopenai.Client
	cfg    config.LLMConfig
	log    *slog.Logger
}

// NewOpenAI creates an OpenAI completer. cfg.BaseURL overrides the default
// endpoint when set.
func NewOpenAI(cfg config.LLMConfig, logger *slog.Logger) *OpenAI {
	clientConfig := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	log := logger.With("component", "openai_client")
	log.Info("OpenAI client initialized", "model", cfg.Model)

	return &OpenAI{
		client: gopenai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		log:    log,
	}
}

func (c *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := withTimeout(ctx, c.cfg)
	defer cancel()

	req := gopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    make([]gopenai.ChatCompletionMessage, 0, len(messages)),
		Temperature: c.cfg.Temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, gopenai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	c.log.DebugContext(ctx, "Requesting chat completion", "message_count", len(req.Messages))

	var resp gopenai.ChatCompletionResponse
	err := retryTransient(ctx, c.log, isOpenAITransient, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		if isOpenAIContextLength(err) {
			return "", markContextLength(err)
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	c.log.DebugContext(ctx, "Chat completion received",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason)

	return resp.Choices[0].Message.Content, nil
}

func openAIRole(role string) string {
	switch role {
	case RoleSystem:
		return gopenai.ChatMessageRoleSystem
	case RoleAssistant:
		return gopenai.ChatMessageRoleAssistant
	default:
		return gopenai.ChatMessageRoleUser
	}
}

func isOpenAITransient(err error) bool {
	var apiErr *gopenai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 500
}

func isOpenAIContextLength(err error) bool {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		if code := fmt.Sprint(apiErr.Code); code == "context_length_exceeded" {
			return true
		}
		return strings.Contains(apiErr.Message, "maximum context length")
	}
	return strings.Contains(err.Error(), "maximum context length")
}
