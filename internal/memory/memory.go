// Package memory bounds the conversation history that is sent to the model
// with every question.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/askbot/internal/config"
	"github.com/edgard/askbot/internal/database"
	"github.com/edgard/askbot/internal/llm"
)

// Memory loads and records the history of one session at a time.
type Memory interface {
	// History returns the bounded history to include before a new question,
	// oldest first.
	History(ctx context.Context, sessionID string) ([]llm.Message, error)
	// Save records one exchange. The user turn is stored before the
	// assistant turn.
	Save(ctx context.Context, sessionID, question, answer string) error
	// Clear drops every turn of the session.
	Clear(ctx context.Context, sessionID string) error
}

// New returns the Memory selected by cfg.Strategy.
func New(cfg config.MemoryConfig, store database.Store, completer llm.Completer, logger *slog.Logger) (Memory, error) {
	if store == nil {
		return nil, errors.New("memory requires a store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Strategy {
	case config.StrategyWindow, "":
		return NewWindow(store, cfg.WindowSize, logger), nil
	case config.StrategySummary:
		if completer == nil {
			return nil, errors.New("summary memory requires a completer")
		}
		return NewSummary(store, completer, NewTokenCounter(logger), cfg.MaxTokenLimit, logger), nil
	default:
		return nil, fmt.Errorf("unsupported memory strategy %q", cfg.Strategy)
	}
}

// Prompt assembles the request for one question: system preamble, then the
// bounded history, then the question itself.
func Prompt(systemPrompt string, history []llm.Message, question string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, history...)
	return append(messages, llm.Message{Role: llm.RoleUser, Content: question})
}

func exchange(question, answer string) []*database.Turn {
	return []*database.Turn{
		{Role: database.RoleUser, Content: question},
		{Role: database.RoleAssistant, Content: answer},
	}
}

func toMessages(turns []*database.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}
