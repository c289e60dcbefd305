// Package chat answers questions with the configured model while keeping
// each chat's history in memory.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/edgard/askbot/internal/llm"
	"github.com/edgard/askbot/internal/memory"
)

const (
	saveAttempts     = 3
	saveInitialDelay = 200 * time.Millisecond
)

// Service runs one question through memory and the model.
type Service struct {
	completer    llm.Completer
	memory       memory.Memory
	systemPrompt string
	log          *slog.Logger
	saveDelay    time.Duration
}

// NewService creates a chat service.
func NewService(completer llm.Completer, mem memory.Memory, systemPrompt string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		completer:    completer,
		memory:       mem,
		systemPrompt: systemPrompt,
		log:          logger.With("component", "chat_service"),
		saveDelay:    saveInitialDelay,
	}
}

// Ask answers question in the context of the session's history and records
// the exchange. When the prompt overflows the model's context window the
// session is cleared and the question asked once more; any error from that
// second attempt is returned as is. Blank answers are not recorded.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (string, error) {
	answer, err := s.ask(ctx, sessionID, question)
	if errors.Is(err, llm.ErrContextLengthExceeded) {
		s.log.WarnContext(ctx, "Context window exceeded, clearing history and retrying", "session_id", sessionID, "error", err)
		if clearErr := s.memory.Clear(ctx, sessionID); clearErr != nil {
			return "", fmt.Errorf("failed to clear history: %w", clearErr)
		}
		answer, err = s.ask(ctx, sessionID, question)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(answer) == "" {
		s.log.WarnContext(ctx, "Model returned an empty answer, not saving exchange", "session_id", sessionID)
		return answer, nil
	}

	s.save(ctx, sessionID, question, answer)
	return answer, nil
}

// ClearHistory forgets every turn of the session.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) error {
	if err := s.memory.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.log.InfoContext(ctx, "Conversation history cleared", "session_id", sessionID)
	return nil
}

func (s *Service) ask(ctx context.Context, sessionID, question string) (string, error) {
	history, err := s.memory.History(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	messages := memory.Prompt(s.systemPrompt, history, question)
	s.log.DebugContext(ctx, "Requesting completion", "session_id", sessionID, "history_turns", len(history))

	return s.completer.Complete(ctx, messages)
}

// save records the exchange, retrying transient store failures. The answer
// is delivered even when the exchange could not be stored.
func (s *Service) save(ctx context.Context, sessionID, question, answer string) {
	err := retry.Do(
		func() error { return s.memory.Save(ctx, sessionID, question, answer) },
		retry.Context(ctx),
		retry.Attempts(saveAttempts),
		retry.Delay(s.saveDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.WarnContext(ctx, "Saving exchange failed, retrying", "session_id", sessionID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to save exchange", "session_id", sessionID, "error", err)
	}
}
