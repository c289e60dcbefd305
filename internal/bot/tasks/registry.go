package tasks

import (
	"context"

	"github.com/edgard/askbot/internal/config"
)

// ScheduledTaskFunc is the signature of every scheduled task. The context
// is cancelled when the scheduler shuts down.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the tasks available to the scheduler, keyed by
// the name used in the scheduler configuration. The webhook task is only
// offered in webhook mode.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	if deps.Store != nil {
		tasks[config.TaskSQLMaintenance] = newSQLMaintenanceTask(deps)
	}
	if deps.Config.Telegram.Mode == config.ModeWebhook && deps.Telegram != nil {
		tasks[config.TaskWebhookMaintenance] = newWebhookMaintenanceTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
