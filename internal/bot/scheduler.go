package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/askbot/internal/bot/tasks"
	"github.com/edgard/askbot/internal/config"
)

// Scheduler runs the configured tasks with gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler for the tasks in taskMap. Which of them
// run, and when, is decided by cfg.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start schedules every enabled task and starts the scheduler. Tasks with a
// cron schedule use it; the others run at their interval. ctx is handed to
// every run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduledCount := 0
	if s.cfg != nil {
		for taskName, taskConfig := range s.cfg.Tasks {
			if s.schedule(ctx, taskName, taskConfig) {
				scheduledCount++
			}
		}
	}
	if scheduledCount == 0 {
		s.logger.Warn("No scheduler tasks scheduled")
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduledCount)

	return nil
}

func (s *Scheduler) schedule(ctx context.Context, taskName string, taskConfig config.TaskConfig) bool {
	if !taskConfig.Enabled {
		s.logger.Info("Skipping disabled task", "task_name", taskName)
		return false
	}

	taskFunc, exists := s.taskMap[taskName]
	if !exists {
		s.logger.Debug("Task configured but not registered, skipping", "task_name", taskName)
		return false
	}

	var definition gocron.JobDefinition
	switch {
	case taskConfig.Schedule != "":
		definition = gocron.CronJob(taskConfig.Schedule, true)
	case taskConfig.Interval > 0:
		definition = gocron.DurationJob(taskConfig.Interval)
	default:
		s.logger.Warn("Task enabled without schedule or interval, skipping", "task_name", taskName)
		return false
	}

	options := []gocron.JobOption{
		gocron.WithName(taskName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if taskConfig.RunOnStart {
		options = append(options, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := s.scheduler.NewJob(
		definition,
		gocron.NewTask(s.run, ctx, taskName, taskFunc),
		options...,
	)
	if err != nil {
		s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "interval", taskConfig.Interval, "error", err)
		return false
	}

	s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule, "interval", taskConfig.Interval, "run_on_start", taskConfig.RunOnStart)
	return true
}

// run executes one task run. Errors and panics are logged and never reach
// the scheduler, so the next run always happens.
func (s *Scheduler) run(ctx context.Context, name string, taskFunc tasks.ScheduledTaskFunc) {
	log := s.logger.With("task_name", name)
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Scheduled task panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	log.DebugContext(ctx, "Running scheduled task")
	if err := taskFunc(ctx); err != nil {
		log.ErrorContext(ctx, "Scheduled task failed", "error", err, "duration", time.Since(startTime))
		return
	}
	log.DebugContext(ctx, "Finished scheduled task", "duration", time.Since(startTime))
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}

	s.running = false
	return err
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}
