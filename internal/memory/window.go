package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/askbot/internal/database"
	"github.com/edgard/askbot/internal/llm"
)

// Window keeps the most recent exchanges of a session.
type Window struct {
	store database.Store
	size  int
	log   *slog.Logger
}

// NewWindow returns a Window holding up to size exchanges (2*size turns).
func NewWindow(store database.Store, size int, logger *slog.Logger) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		store: store,
		size:  size,
		log:   logger.With("component", "window_memory"),
	}
}

func (w *Window) History(ctx context.Context, sessionID string) ([]llm.Message, error) {
	turns, err := w.store.GetRecentTurns(ctx, sessionID, 2*w.size)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent turns: %w", err)
	}
	w.log.DebugContext(ctx, "Loaded history", "session_id", sessionID, "turns", len(turns))
	return toMessages(turns), nil
}

func (w *Window) Save(ctx context.Context, sessionID, question, answer string) error {
	if err := w.store.AppendTurns(ctx, sessionID, exchange(question, answer)); err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	return nil
}

func (w *Window) Clear(ctx context.Context, sessionID string) error {
	return w.store.ClearSession(ctx, sessionID)
}
