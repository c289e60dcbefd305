// Package tasks implements the bot's scheduled jobs and the registry the
// scheduler picks them from.
package tasks

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/askbot/internal/config"
	"github.com/edgard/askbot/internal/database"
)

// WebhookClient is the part of the Telegram client the webhook task uses.
// *bot.Bot satisfies it.
type WebhookClient interface {
	GetWebhookInfo(ctx context.Context) (*models.WebhookInfo, error)
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Telegram WebhookClient
	Config   *config.Config
}
