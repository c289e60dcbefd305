package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewClearHistoryHandler returns a handler for the /clear_history command.
// It forgets the conversation of the chat it was sent in.
func NewClearHistoryHandler(deps HandlerDeps) bot.HandlerFunc {
	h := clearHistoryHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type clearHistoryHandler struct {
	deps HandlerDeps
}

func (h clearHistoryHandler) handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "clear_history")

	if update.Message == nil {
		log.WarnContext(ctx, "Clear history handler received update without message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	reply := h.deps.Config.Messages.HistoryCleared

	if err := h.deps.Chat.ClearHistory(ctx, strconv.FormatInt(chatID, 10)); err != nil {
		log.ErrorContext(ctx, "Failed to clear history", "error", err, "chat_id", chatID)
		reply = err.Error()
	}

	if _, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		log.ErrorContext(ctx, "Failed to send clear history reply", "error", err, "chat_id", chatID)
	}
}
