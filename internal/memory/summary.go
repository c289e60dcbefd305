package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/askbot/internal/database"
	"github.com/edgard/askbot/internal/llm"
)

// summaryPrefix introduces the running summary in the prompt.
const summaryPrefix = "Summary of the conversation so far:\n"

const summarizeInstruction = `Progressively summarize the lines of conversation provided, adding onto the previous summary and returning a new summary.

Current summary:
%s

New lines of conversation:
%s

New summary:`

// Summary keeps a running summary of older turns plus every turn after it.
// Once the un-summarized turns exceed the token limit, the oldest of them
// are folded into the summary with one completion call.
type Summary struct {
	store     database.Store
	completer llm.Completer
	counter   TokenCounter
	limit     int
	log       *slog.Logger
}

// NewSummary returns a Summary memory bounded by limit tokens.
func NewSummary(store database.Store, completer llm.Completer, counter TokenCounter, limit int, logger *slog.Logger) *Summary {
	return &Summary{
		store:     store,
		completer: completer,
		counter:   counter,
		limit:     limit,
		log:       logger.With("component", "summary_memory"),
	}
}

func (s *Summary) History(ctx context.Context, sessionID string) ([]llm.Message, error) {
	summary, turns, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(turns)+1)
	if summary != nil && summary.Content != "" {
		history = append(history, llm.Message{Role: llm.RoleSystem, Content: summaryPrefix + summary.Content})
	}
	return append(history, toMessages(turns)...), nil
}

// Save stores the exchange and then compacts the session if needed. A
// failed compaction is logged and attempted again on the next save.
func (s *Summary) Save(ctx context.Context, sessionID, question, answer string) error {
	if err := s.store.AppendTurns(ctx, sessionID, exchange(question, answer)); err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}

	if err := s.compact(ctx, sessionID); err != nil {
		s.log.WarnContext(ctx, "Failed to update conversation summary", "session_id", sessionID, "error", err)
	}
	return nil
}

func (s *Summary) Clear(ctx context.Context, sessionID string) error {
	return s.store.ClearSession(ctx, sessionID)
}

func (s *Summary) load(ctx context.Context, sessionID string) (*database.Summary, []*database.Turn, error) {
	summary, err := s.store.GetSummary(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load summary: %w", err)
	}

	var after int64
	if summary != nil {
		after = summary.LastTurnID
	}

	turns, err := s.store.GetTurnsAfter(ctx, sessionID, after)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load turns: %w", err)
	}
	return summary, turns, nil
}

func (s *Summary) compact(ctx context.Context, sessionID string) error {
	summary, turns, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	fold := s.foldCount(turns)
	if fold == 0 {
		return nil
	}

	var previous string
	if summary != nil {
		previous = summary.Content
	}

	folded := turns[:fold]
	content, err := s.completer.Complete(ctx, []llm.Message{{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf(summarizeInstruction, previous, transcript(folded)),
	}})
	if err != nil {
		return fmt.Errorf("summarization call failed: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("summarization returned an empty summary")
	}

	s.log.DebugContext(ctx, "Folded turns into summary", "session_id", sessionID, "folded", fold, "remaining", len(turns)-fold)

	return s.store.SaveSummary(ctx, &database.Summary{
		SessionID:  sessionID,
		Content:    content,
		LastTurnID: folded[len(folded)-1].ID,
	})
}

// foldCount returns how many of the oldest turns must be folded so the rest
// fit the token limit. Zero means the turns already fit.
func (s *Summary) foldCount(turns []*database.Turn) int {
	total := 0
	for _, turn := range turns {
		total += s.counter.Count(turn.Content)
	}

	fold := 0
	for total > s.limit && fold < len(turns) {
		total -= s.counter.Count(turns[fold].Content)
		fold++
	}
	return fold
}

func transcript(turns []*database.Turn) string {
	var sb strings.Builder
	for i, turn := range turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		switch turn.Role {
		case database.RoleAssistant:
			sb.WriteString("AI: ")
		case database.RoleSystem:
			sb.WriteString("System: ")
		default:
			sb.WriteString("Human: ")
		}
		sb.WriteString(turn.Content)
	}
	return sb.String()
}
