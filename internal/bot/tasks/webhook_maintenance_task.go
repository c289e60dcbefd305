package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
)

// newWebhookMaintenanceTask returns the task that keeps Telegram's webhook
// registration pointing at this deployment. A webhook that is unset is
// registered; one that points elsewhere is deleted, keeping pending
// updates, and registered again; a correct one is left alone.
func newWebhookMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "webhook_maintenance")
	tg := deps.Config.Telegram

	return func(ctx context.Context) error {
		expected := tg.WebhookURL()

		info, err := deps.Telegram.GetWebhookInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to get webhook info: %w", err)
		}
		if info == nil {
			return errors.New("failed to get webhook info: empty response")
		}

		if info.URL == expected {
			log.DebugContext(ctx, "Webhook is up to date", "pending_updates", info.PendingUpdateCount)
			return nil
		}

		if info.URL != "" {
			log.WarnContext(ctx, "Webhook points elsewhere, replacing it", "current_url", redact(info.URL, tg.Token))
			if _, err := deps.Telegram.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: false}); err != nil {
				return fmt.Errorf("failed to delete webhook: %w", err)
			}
		}

		_, err = deps.Telegram.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:            expected,
			MaxConnections: tg.WebhookMaxConnections,
			SecretToken:    tg.WebhookSecret,
		})
		if err != nil {
			return fmt.Errorf("failed to set webhook: %w", err)
		}

		log.InfoContext(ctx, "Webhook registered", "url", redact(expected, tg.Token))
		return nil
	}
}

// redact hides the bot token inside webhook URLs before they are logged.
func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}
