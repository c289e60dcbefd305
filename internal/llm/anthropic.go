package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/edgard/askbot/internal/config"
)

// Anthropic implements Completer with the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	cfg    config.LLMConfig
	log    *slog.Logger
}

// NewAnthropic creates an Anthropic completer.
func NewAnthropic(cfg config.LLMConfig, logger *slog.Logger, opts ...option.RequestOption) *Anthropic {
	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	log := logger.With("component", "anthropic_client")
	log.Info("Anthropic client initialized", "model", cfg.Model)

	return &Anthropic{
		client: anthropic.NewClient(clientOpts...),
		cfg:    cfg,
		log:    log,
	}
}

func (c *Anthropic) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := withTimeout(ctx, c.cfg)
	defer cancel()

	system, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		Messages:    make([]anthropic.MessageParam, 0, len(rest)),
		Temperature: anthropic.Float(float64(c.cfg.Temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range rest {
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	c.log.DebugContext(ctx, "Requesting message", "message_count", len(params.Messages))

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		if isAnthropicContextLength(err) {
			return "", markContextLength(err)
		}
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if sb.Len() == 0 && len(msg.Content) == 0 {
		return "", errors.New("anthropic returned no content")
	}

	return sb.String(), nil
}

func isAnthropicContextLength(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 400 {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "prompt is too long")
}
