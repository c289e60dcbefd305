// Package config provides configuration loading, validation, and management
// for askbot. Values come from built-in defaults, an optional YAML file, an
// optional .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Bot transport modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Memory strategies.
const (
	StrategyWindow  = "window"
	StrategySummary = "summary"
)

// Config is the root configuration of the application.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials and transport settings.
type TelegramConfig struct {
	Token                 string `mapstructure:"token"                   validate:"required"`
	Mode                  string `mapstructure:"mode"                    validate:"oneof=polling webhook"`
	BotName               string `mapstructure:"bot_name"`
	WebhookBaseURL        string `mapstructure:"webhook_base_url"        validate:"required_if=Mode webhook,omitempty,url"`
	WebhookSecret         string `mapstructure:"webhook_secret"          validate:"omitempty,max=256"`
	WebhookMaxConnections int    `mapstructure:"webhook_max_connections" validate:"min=1,max=100"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-" validate:"-"`
}

// DisplayName returns the name group messages must contain to be answered.
func (c TelegramConfig) DisplayName() string {
	if c.BotName != "" {
		return c.BotName
	}
	if c.BotInfo != nil {
		return c.BotInfo.FirstName
	}
	return ""
}

// WebhookPath is the path Telegram posts updates to. It embeds the bot
// token so the endpoint is not guessable.
func (c TelegramConfig) WebhookPath() string {
	return "/webhook/" + c.Token
}

// WebhookURL is the full URL the webhook should be registered with.
func (c TelegramConfig) WebhookURL() string {
	return strings.TrimRight(c.WebhookBaseURL, "/") + c.WebhookPath()
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"      validate:"oneof=openai gemini anthropic"`
	APIKey       string        `mapstructure:"api_key"       validate:"required"`
	BaseURL      string        `mapstructure:"base_url"      validate:"omitempty,url"`
	Model        string        `mapstructure:"model"         validate:"required"`
	Temperature  float32       `mapstructure:"temperature"   validate:"min=0,max=2"`
	MaxTokens    int           `mapstructure:"max_tokens"    validate:"min=1"`
	SystemPrompt string        `mapstructure:"system_prompt" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"min=0"`

	// BreakerFailures consecutive provider failures open the circuit for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"min=0"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"min=0"`
}

// MemoryConfig bounds the history included in each prompt.
type MemoryConfig struct {
	Strategy      string `mapstructure:"strategy"        validate:"oneof=window summary"`
	WindowSize    int    `mapstructure:"window_size"     validate:"min=1,max=100"`
	MaxTokenLimit int    `mapstructure:"max_token_limit" validate:"min=100"`
}

// DatabaseConfig points at the relational history store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// ServerConfig configures the webhook HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"             validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SchedulerConfig lists the background tasks.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig schedules one task either by cron expression or by interval.
// Schedule wins when both are set.
type TaskConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Schedule   string        `mapstructure:"schedule"`
	Interval   time.Duration `mapstructure:"interval"     validate:"min=0"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// MessagesConfig holds the user-facing texts.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"         validate:"required"`
	HistoryCleared string `mapstructure:"history_cleared" validate:"required"`
	Loading        string `mapstructure:"loading"         validate:"required"`
	EmptyAnswer    string `mapstructure:"empty_answer"    validate:"required"`
}

// envBindings maps configuration keys to the deployment variables the bot
// has always been configured with. The BOT_-prefixed name is kept as a
// fallback.
var envBindings = map[string][]string{
	"telegram.token":            {"TELEGRAM_BOT_KEY", "BOT_TELEGRAM_TOKEN"},
	"telegram.webhook_base_url": {"APP_BASE_URL", "HEROKU_APP_NAME", "BOT_TELEGRAM_WEBHOOK_BASE_URL"},
	"llm.api_key":               {"OPENAI_KEY", "BOT_LLM_API_KEY"},
	"llm.system_prompt":         {"SYSTEM_PROMPT", "BOT_LLM_SYSTEM_PROMPT"},
	"database.url":              {"DATABASE_URL", "BOT_DATABASE_URL"},
	"server.port":               {"PORT", "BOT_SERVER_PORT"},
}

// Load reads and validates the configuration. configPath may be empty, in
// which case ./config.yaml is used when it exists. A missing file is not an
// error.
func Load(configPath string) (*Config, error) {
	startTime := time.Now()

	cfg, err := read(configPath)
	if err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	slog.Debug("Configuration loaded",
		"mode", cfg.Telegram.Mode,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"memory_strategy", cfg.Memory.Strategy,
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

// LoadDatabase reads the configuration like Load but validates only the log
// and database sections, which is all schema migrations need.
func LoadDatabase(configPath string) (*Config, error) {
	cfg, err := read(configPath)
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(cfg.Log); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := validate.Struct(cfg.Database); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func read(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath == "" {
		configPath = DefaultConfigPath
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		slog.Debug("Configuration file not found, using defaults and environment", "path", configPath)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModels[cfg.LLM.Provider]
	}

	return cfg, nil
}
