package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/askbot/internal/config"
)

// ChatService answers questions and forgets conversations.
type ChatService interface {
	Ask(ctx context.Context, sessionID, question string) (string, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// Sender is the part of the Telegram client the handlers talk to.
// *bot.Bot satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Chat   ChatService
}
