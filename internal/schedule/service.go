// Package schedule arms per-tenant recurring tasks from stored
// schedule configurations.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TaskKindBalanceAlert is the negative balance notification task.
const TaskKindBalanceAlert = "balance_alert"

// runTimeout bounds a single task firing.
const runTimeout = 10 * time.Minute

// Config is one stored schedule: which tenant, which task, when.
type Config struct {
	ID       int64
	TenantID int64
	TaskKind string
	Spec     RecurrenceSpec
	Enabled  bool
}

// JobID returns the stable identifier of the armed job for a config.
func (c Config) JobID() string {
	return fmt.Sprintf("schedule:%d", c.ID)
}

// ConfigSource reads schedule configurations from storage.
type ConfigSource interface {
	// ListEnabled returns every enabled schedule configuration.
	ListEnabled(ctx context.Context) ([]Config, error)
	// Get returns one configuration by id. found is false when the row
	// no longer exists.
	Get(ctx context.Context, id int64) (Config, bool, error)
}

// Task executes one kind of scheduled work.
type Task interface {
	Run(ctx context.Context, cfg Config) error
}

// Service owns the cron runner and the mapping from config ids to
// armed cron entries.
type Service struct {
	log    *slog.Logger
	source ConfigSource
	cron   *cron.Cron
	tasks  map[string]Task

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

func NewService(source ConfigSource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		log:    slog.With(slog.String("service", "schedule")),
		source: source,
		cron:   cron.New(cron.WithLocation(loc)),
		tasks:  make(map[string]Task),
		jobs:   make(map[string]cron.EntryID),
	}
}

// RegisterTask binds a task implementation to a task kind. Must be
// called before Start.
func (s *Service) RegisterTask(kind string, task Task) {
	s.tasks[kind] = task
}

// Start arms every enabled schedule and starts the cron runner.
func (s *Service) Start(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("schedule engine started", slog.Int("jobs", len(s.ArmedJobs())))
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("schedule engine stopped")
}

// Reload disarms every job and re-arms from storage. Running jobs
// finish; their next firings follow the new configuration.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	for id, entry := range s.jobs {
		s.cron.Remove(entry)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}
	s.log.Info("schedules reloaded", slog.Int("jobs", len(s.ArmedJobs())))
	return nil
}

// ArmedJobs lists the ids of currently armed jobs in stable order.
func (s *Service) ArmedJobs() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

func (s *Service) load(ctx context.Context) error {
	configs, err := s.source.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	for _, cfg := range configs {
		expr, ok := cfg.Spec.CronExpr()
		if !ok {
			s.log.Warn("schedule selects no days, skipping",
				slog.Int64("config_id", cfg.ID),
				slog.String("mode", string(cfg.Spec.Mode)))
			continue
		}
		cfg := cfg
		entry, err := s.cron.AddFunc(expr, func() { s.fire(cfg.ID) })
		if err != nil {
			s.log.Error("schedule arming failed",
				slog.Int64("config_id", cfg.ID),
				slog.String("expr", expr),
				slog.String("error", err.Error()))
			continue
		}
		s.mu.Lock()
		s.jobs[cfg.JobID()] = entry
		s.mu.Unlock()
		s.log.Info("schedule armed",
			slog.String("job_id", cfg.JobID()),
			slog.Int64("tenant_id", cfg.TenantID),
			slog.String("expr", expr))
	}
	return nil
}

// fire re-reads the configuration at trigger time so a disable or
// delete that happened after arming turns the firing into a no-op.
func (s *Service) fire(configID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg, found, err := s.source.Get(ctx, configID)
	if err != nil {
		s.log.Error("schedule re-read failed",
			slog.Int64("config_id", configID),
			slog.String("error", err.Error()))
		return
	}
	if !found || !cfg.Enabled {
		s.log.Info("schedule no longer active, skipping firing",
			slog.Int64("config_id", configID))
		return
	}

	task, ok := s.tasks[cfg.TaskKind]
	if !ok {
		s.log.Error("no task registered for kind",
			slog.Int64("config_id", configID),
			slog.String("task_kind", cfg.TaskKind))
		return
	}

	s.log.Info("schedule firing",
		slog.String("job_id", cfg.JobID()),
		slog.String("task_kind", cfg.TaskKind),
		slog.Int64("tenant_id", cfg.TenantID))
	if err := task.Run(ctx, cfg); err != nil {
		s.log.Error("scheduled task failed",
			slog.String("job_id", cfg.JobID()),
			slog.String("error", err.Error()))
	}
}
