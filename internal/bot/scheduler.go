package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/tutorbot/tutorbot/internal/bot/tasks"
	"github.com/tutorbot/tutorbot/internal/config"
)

// Scheduler runs the housekeeping tasks on their cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc

	mu      sync.Mutex
	running bool
	// cancel stops tasks that are still running at shutdown.
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for the registered tasks.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
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

// Start schedules every enabled task and starts the scheduler. Tasks with an
// unknown name or invalid schedule are logged and skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	var names []string
	if s.cfg != nil {
		for name := range s.cfg.Tasks {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	scheduled := 0
	for _, name := range names {
		taskConfig := s.cfg.Tasks[name]
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", name)
			continue
		}

		taskFunc, exists := s.taskMap[name]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", name)
			continue
		}
		if taskConfig.Schedule == "" {
			s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", name)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(s.runTask, taskCtx, name, taskFunc),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", name, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", name, "schedule", taskConfig.Schedule)
		scheduled++
	}

	if scheduled == 0 {
		s.logger.Warn("No scheduler tasks configured")
	}
	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduled)
	return nil
}

func (s *Scheduler) runTask(ctx context.Context, name string, task tasks.ScheduledTaskFunc) {
	s.logger.DebugContext(ctx, "Running scheduled task", "task_name", name)
	start := time.Now()
	if err := task(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", name, "error", err)
	}
	s.logger.DebugContext(ctx, "Finished scheduled task", "task_name", name, "duration", time.Since(start))
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}
	s.running = false
	return err
}
