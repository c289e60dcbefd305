// Package bot wires the Telegram transport, the webhook listener and the
// scheduler together and runs them until shutdown.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/askbot/internal/config"
)

// Transport receives updates from Telegram. *tgbot.Bot satisfies it.
type Transport interface {
	Start(ctx context.Context)
	StartWebhook(ctx context.Context)
	DeleteWebhook(ctx context.Context, params *tgbot.DeleteWebhookParams) (bool, error)
}

// Listener serves HTTP until its context is cancelled.
type Listener interface {
	Run(ctx context.Context) error
}

// Bot manages the lifecycle of the bot's components.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	tg        Transport
	listener  Listener
	scheduler *Scheduler
}

// NewBot creates the orchestrator. listener is only used in webhook mode
// and may be nil in polling mode.
func NewBot(logger *slog.Logger, cfg *config.Config, tg Transport, listener Listener, scheduler *Scheduler) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		tg:        tg,
		listener:  listener,
		scheduler: scheduler,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (b *Bot) Run(ctx context.Context) error {
	mode := b.cfg.Telegram.Mode
	b.logger.Info("Starting bot", "mode", mode)

	if mode == config.ModeWebhook && b.listener == nil {
		return errors.New("webhook mode requires an HTTP listener")
	}

	g, gCtx := errgroup.WithContext(ctx)

	switch mode {
	case config.ModeWebhook:
		g.Go(func() error {
			b.tg.StartWebhook(gCtx)
			return b.stopped(gCtx, "webhook update processor")
		})
		g.Go(func() error {
			return b.listener.Run(gCtx)
		})
	default:
		// getUpdates is refused while a webhook is registered.
		if _, err := b.tg.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{DropPendingUpdates: false}); err != nil {
			b.logger.Warn("Failed to delete webhook before polling", "error", err)
		}
		g.Go(func() error {
			b.tg.Start(gCtx)
			return b.stopped(gCtx, "polling listener")
		})
	}

	if b.scheduler != nil {
		g.Go(func() error {
			if err := b.scheduler.Start(gCtx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot stopped gracefully")
	return nil
}

func (b *Bot) stopped(ctx context.Context, component string) error {
	if ctx.Err() == nil {
		b.logger.Warn("Telegram component stopped unexpectedly", "component", component)
		return fmt.Errorf("%s stopped unexpectedly", component)
	}
	b.logger.Info("Telegram component stopped", "component", component)
	return nil
}
