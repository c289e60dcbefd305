package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/edgard/askbot/internal/bot"
	"github.com/edgard/askbot/internal/bot/handlers"
	"github.com/edgard/askbot/internal/bot/tasks"
	"github.com/edgard/askbot/internal/chat"
	"github.com/edgard/askbot/internal/config"
	"github.com/edgard/askbot/internal/database"
	"github.com/edgard/askbot/internal/llm"
	"github.com/edgard/askbot/internal/logger"
	"github.com/edgard/askbot/internal/memory"
	"github.com/edgard/askbot/internal/server"
	"github.com/edgard/askbot/internal/telegram"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "askbot",
		Short:         "Telegram bot that answers questions with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to configuration file")
	cmd.AddCommand(newMigrateCmd(&configPath))

	return cmd
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup(*configPath, config.LoadDatabase)
			if err != nil {
				return err
			}

			db, err := database.NewDB(cfg.Database.URL)
			if err != nil {
				log.Error("Failed to migrate database", "error", err)
				return err
			}
			database.CloseDB(db)

			log.Info("Database is up to date")
			return nil
		},
	}
}

// setup loads the configuration with load and installs the configured
// logger.
func setup(configPath string, load func(string) (*config.Config, error)) (*config.Config, *slog.Logger, error) {
	cfg, err := load(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return nil, nil, err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	return cfg, log, nil
}

// run wires every component and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, configPath string) error {
	cfg, log, err := setup(configPath, config.Load)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		log.Error("Failed to connect to database", "driver", database.DriverFor(cfg.Database.URL), "error", err)
		return err
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	completer, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		log.Error("Failed to initialize LLM client", "provider", cfg.LLM.Provider, "error", err)
		return err
	}

	mem, err := memory.New(cfg.Memory, store, completer, log)
	if err != nil {
		log.Error("Failed to initialize memory", "strategy", cfg.Memory.Strategy, "error", err)
		return err
	}
	chatService := chat.NewService(completer, mem, cfg.LLM.SystemPrompt, log)

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Chat:   chatService,
	}

	opts := telegram.Options(cfg.Telegram.WebhookSecret,
		handlers.NewDefaultHandler(hDeps),
		logger.Recoverer(log), logger.Middleware(log))
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return err
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Info("Retrieved bot info",
		"bot_id", cfg.Telegram.BotInfo.ID,
		"bot_username", cfg.Telegram.BotInfo.Username,
		"display_name", cfg.Telegram.DisplayName())

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return err
	}

	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Telegram: tg,
		Config:   cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps),
		gocron.WithLogger(logger.NewGocronLogger(log)))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return err
	}

	var listener bot.Listener
	if cfg.Telegram.Mode == config.ModeWebhook {
		listener = server.New(cfg.Server, cfg.Telegram.WebhookPath(), tg.WebhookHandler(), store, log)
	}

	return bot.NewBot(log, cfg, tg, listener, sched).Run(ctx)
}
