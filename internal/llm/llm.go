// Package llm wraps the chat completion APIs the bot can talk to behind a
// single Completer interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/edgard/askbot/internal/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat-style completion request.
type Message struct {
	Role    string
	Content string
}

// Completer produces the next assistant message for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ErrContextLengthExceeded matches errors caused by a prompt that does not
// fit the model's context window.
var ErrContextLengthExceeded = errors.New("context length exceeded")

// contextLengthError keeps the provider's error text intact while making
// errors.Is(err, ErrContextLengthExceeded) hold.
type contextLengthError struct {
	err error
}

func (e *contextLengthError) Error() string { return e.err.Error() }

func (e *contextLengthError) Unwrap() []error { return []error{ErrContextLengthExceeded, e.err} }

func markContextLength(err error) error {
	if err == nil {
		return nil
	}
	return &contextLengthError{err: err}
}

// New builds the Completer selected by cfg.Provider, behind a circuit
// breaker unless cfg.BreakerFailures is zero.
func New(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Completer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var completer Completer
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		completer = NewOpenAI(cfg, logger)
	case config.ProviderGemini:
		gemini, err := NewGemini(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		completer = gemini
	case config.ProviderAnthropic:
		completer = NewAnthropic(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	if cfg.BreakerFailures > 0 {
		completer = NewBreaker(completer, cfg.Provider, cfg.BreakerFailures, cfg.BreakerCooldown, logger)
	}
	return completer, nil
}

// splitSystem separates system turns from the conversation. Providers that
// take the system prompt out of band use it.
func splitSystem(messages []Message) (system string, rest []Message) {
	var parts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n\n"), rest
}

func withTimeout(ctx context.Context, cfg config.LLMConfig) (context.Context, context.CancelFunc) {
	if cfg.Timeout > 0 {
		return context.WithTimeout(ctx, cfg.Timeout)
	}
	return ctx, func() {}
}

// transientAttempts bounds retries of server-side failures (5xx).
const transientAttempts = 3

var transientDelay = time.Second

// retryTransient runs fn until it succeeds, fails with an error retriable
// does not accept, or runs out of attempts. The last error is returned as is.
func retryTransient(ctx context.Context, log *slog.Logger, retriable func(error) bool, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(transientAttempts),
		retry.Delay(transientDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retriable),
		retry.OnRetry(func(n uint, err error) {
			log.WarnContext(ctx, "Provider call failed, retrying", "attempt", n+1, "error", err)
		}),
	)
}
