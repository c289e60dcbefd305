package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	h := startHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil {
		log.WarnContext(ctx, "Start handler received update without message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID)

	_, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Config.Messages.Welcome})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", chatID)
	}
}
