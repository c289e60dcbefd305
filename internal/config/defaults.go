package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "./config.yaml"

// Task names as used in the scheduler section of the configuration.
const (
	TaskWebhookMaintenance = "webhook_maintenance"
	TaskSQLMaintenance     = "sql_maintenance"
)

// Default values for optional configuration.
const (
	DefaultLogLevel = "info"

	DefaultMode                  = ModePolling
	DefaultWebhookMaxConnections = 50

	DefaultProvider    = ProviderOpenAI
	DefaultTemperature = 1.0
	DefaultMaxTokens   = 1024

	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = time.Minute

	DefaultStrategy      = StrategyWindow
	DefaultWindowSize    = 5
	DefaultMaxTokenLimit = 2000

	DefaultDatabaseURL = "storage.db"

	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second

	DefaultWebhookCheckInterval = 5 * time.Minute
	DefaultSQLMaintenanceCron   = "0 0 4 * * *"
)

// DefaultModels holds the model used for each provider when llm.model is
// not set.
var DefaultModels = map[string]string{
	ProviderOpenAI:    "gpt-3.5-turbo",
	ProviderGemini:    "gemini-2.0-flash",
	ProviderAnthropic: "claude-3-5-haiku-latest",
}

// Default user-facing messages.
const (
	DefaultWelcomeMessage        = "Hi, what is your question?"
	DefaultHistoryClearedMessage = "Conversation history has been cleared."
	DefaultLoadingMessage        = "Loading…"
	DefaultEmptyAnswerMessage    = "I have no answer to that."
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.mode", DefaultMode)
	v.SetDefault("telegram.bot_name", "")
	v.SetDefault("telegram.webhook_base_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.webhook_max_connections", DefaultWebhookMaxConnections)

	v.SetDefault("llm.provider", DefaultProvider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", DefaultTemperature)
	v.SetDefault("llm.max_tokens", DefaultMaxTokens)
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("llm.timeout", time.Duration(0))
	v.SetDefault("llm.breaker_failures", DefaultBreakerFailures)
	v.SetDefault("llm.breaker_cooldown", DefaultBreakerCooldown)

	v.SetDefault("memory.strategy", DefaultStrategy)
	v.SetDefault("memory.window_size", DefaultWindowSize)
	v.SetDefault("memory.max_token_limit", DefaultMaxTokenLimit)

	v.SetDefault("database.url", DefaultDatabaseURL)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)

	v.SetDefault("scheduler.tasks."+TaskWebhookMaintenance+".enabled", true)
	v.SetDefault("scheduler.tasks."+TaskWebhookMaintenance+".interval", DefaultWebhookCheckInterval)
	v.SetDefault("scheduler.tasks."+TaskWebhookMaintenance+".run_on_start", true)
	v.SetDefault("scheduler.tasks."+TaskSQLMaintenance+".enabled", true)
	v.SetDefault("scheduler.tasks."+TaskSQLMaintenance+".schedule", DefaultSQLMaintenanceCron)

	v.SetDefault("messages.welcome", DefaultWelcomeMessage)
	v.SetDefault("messages.history_cleared", DefaultHistoryClearedMessage)
	v.SetDefault("messages.loading", DefaultLoadingMessage)
	v.SetDefault("messages.empty_answer", DefaultEmptyAnswerMessage)
}
