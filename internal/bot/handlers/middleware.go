// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AllowedChats passes private messages through and, in any other chat,
// only messages containing the bot's display name. Everything else is
// dropped without a reply.
func AllowedChats(deps HandlerDeps) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if !isAllowed(deps, update.Message) {
				deps.Logger.DebugContext(ctx, "Message filtered out", "update_id", update.ID)
				return
			}
			next(ctx, b, update)
		}
	}
}

func isAllowed(deps HandlerDeps, msg *models.Message) bool {
	if msg == nil {
		return false
	}
	if msg.Chat.Type == models.ChatTypePrivate {
		return true
	}

	name := deps.Config.Telegram.DisplayName()
	return name != "" && strings.Contains(msg.Text, name)
}

// NewDefaultHandler returns the handler for updates no other handler
// matches. They are ignored.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		deps.Logger.DebugContext(ctx, "Ignoring unhandled update", "update_id", update.ID)
	}
}
