package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/askbot/internal/config"
)

// Gemini implements Completer with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    config.LLMConfig
	log    *slog.Logger
}

// NewGemini creates a Gemini completer.
func NewGemini(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "gemini_client")
	log.Info("Gemini client initialized", "model", cfg.Model)

	return &Gemini{client: client, cfg: cfg, log: log}, nil
}

func (c *Gemini) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := withTimeout(ctx, c.cfg)
	defer cancel()

	system, contents := geminiContents(messages)

	temperature := c.cfg.Temperature
	contentConfig := &genai.GenerateContentConfig{Temperature: &temperature}
	if system != "" {
		contentConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	c.log.DebugContext(ctx, "Requesting content generation", "content_count", len(contents))

	var resp *genai.GenerateContentResponse
	err := retryTransient(ctx, c.log, isGeminiTransient, func() error {
		var callErr error
		resp, callErr = c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, contentConfig)
		return callErr
	})
	if err != nil {
		if isGeminiContextLength(err) {
			return "", markContextLength(err)
		}
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" &&
		resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := resp.PromptFeedback.BlockReasonMessage
		if reason == "" {
			reason = string(resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("gemini blocked the request: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	return resp.Text(), nil
}

func geminiContents(messages []Message) (string, []*genai.Content) {
	system, rest := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return system, contents
}

func geminiStatus(err error) int {
	var ptrErr *genai.APIError
	if errors.As(err, &ptrErr) {
		return ptrErr.Code
	}
	var valErr genai.APIError
	if errors.As(err, &valErr) {
		return valErr.Code
	}
	return 0
}

func isGeminiTransient(err error) bool {
	code := geminiStatus(err)
	return code == 500 || code == 503
}

func isGeminiContextLength(err error) bool {
	if code := geminiStatus(err); code != 0 && code != 400 {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "exceeds the maximum number of tokens") ||
		strings.Contains(msg, "input token count")
}
