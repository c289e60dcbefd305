// Package telegram creates the Telegram client and registers the bot's
// handlers with it.
package telegram

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-telegram/bot"

	"github.com/edgard/askbot/internal/bot/handlers"
)

// NewTelegramBot creates a go-telegram client. getMe is skipped here; the
// caller fetches bot info explicitly.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created")
	return b, nil
}

// Options returns the client options for the configured transport. In
// webhook mode the secret token, when set, is checked on every request.
func Options(webhookSecret string, defaultHandler bot.HandlerFunc, middlewares ...bot.Middleware) []bot.Option {
	opts := []bot.Option{
		bot.WithMiddlewares(middlewares...),
		bot.WithDefaultHandler(defaultHandler),
	}
	if webhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(webhookSecret))
	}
	return opts
}

// Registrar is the part of the client handler registration needs.
// *bot.Bot satisfies it.
type Registrar interface {
	RegisterHandlerMatchFunc(matchFunc bot.MatchFunc, f bot.HandlerFunc, m ...bot.Middleware) string
}

// RegisterHandlers registers every handler with its own middleware.
func RegisterHandlers(b Registrar, logger *slog.Logger, registeredHandlers map[string]handlers.RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registeredHandlers) == 0 {
		log.Warn("No handlers provided for registration")
		return nil
	}

	keys := make([]string, 0, len(registeredHandlers))
	for key := range registeredHandlers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	registered := 0
	for _, key := range keys {
		h := registeredHandlers[key]
		if h.Handler == nil || h.Match == nil {
			log.Warn("Skipping incomplete handler", "name", key)
			continue
		}

		b.RegisterHandlerMatchFunc(h.Match, h.Handler, h.Middleware...)
		log.Debug("Registered handler", "name", key, "middleware_count", len(h.Middleware))
		registered++
	}

	log.Info("Registered Telegram handlers", "count", registered)
	return nil
}
