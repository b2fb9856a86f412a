// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/theledlead/bookshelf/internal/config"
	"github.com/theledlead/bookshelf/internal/tasks"
)

var ErrUnknownJob = errors.New("unknown job")

// TokenPurgeSchedule runs expired token cleanup at the top of every hour.
const TokenPurgeSchedule = "0 * * * *"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RunFunc performs one run of a job.
type RunFunc func(ctx context.Context) error

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Schedule string
	Run      RunFunc
}

// JobStatus describes a scheduled job.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
}

// Enqueuer hands a task to the background queue.
type Enqueuer interface {
	Enqueue(task backlite.Task) (string, error)
}

// EnqueueTask returns a RunFunc that enqueues a fresh task on every run.
func EnqueueTask(e Enqueuer, newTask func() backlite.Task) RunFunc {
	return func(ctx context.Context) error {
		_, err := e.Enqueue(newTask())
		return err
	}
}

// MaintenanceJobs builds the audit cleanup and token purge jobs. With a
// queue they are enqueued; without one the processors run inline.
func MaintenanceJobs(cfg config.Audit, queue Enqueuer, cleaner tasks.AuditEventCleaner, purger tasks.TokenPurger) []Job {
	auditTask := func() backlite.Task {
		return tasks.CleanupAuditEventsTask{RetentionDays: cfg.RetentionDays}
	}
	purgeTask := func() backlite.Task {
		return tasks.PurgeExpiredTokensTask{}
	}

	auditRun := func(ctx context.Context) error {
		return tasks.CleanupAuditEventsProcessor(cleaner)(ctx, tasks.CleanupAuditEventsTask{RetentionDays: cfg.RetentionDays})
	}
	purgeRun := func(ctx context.Context) error {
		return tasks.PurgeExpiredTokensProcessor(purger)(ctx, tasks.PurgeExpiredTokensTask{})
	}
	if queue != nil {
		auditRun = EnqueueTask(queue, auditTask)
		purgeRun = EnqueueTask(queue, purgeTask)
	}

	schedule := cfg.CleanupSchedule
	if schedule == "" {
		schedule = "0 3 * * *"
	}

	return []Job{
		{Name: "cleanup_audit_events", Schedule: schedule, Run: auditRun},
		{Name: "purge_expired_tokens", Schedule: TokenPurgeSchedule, Run: purgeRun},
	}
}

// Scheduler manages periodic maintenance jobs.
type Scheduler struct {
	jobs []Job
	cron *cron.Cron

	mu        sync.RWMutex
	entries   map[string]cron.EntryID
	isRunning bool
	runCtx    context.Context
}

// New creates a scheduler for jobs. Nothing runs until Start.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// ValidateCronSchedule checks a five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// NextRunTime calculates when a schedule fires next after from.
func NextRunTime(schedule string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

// Start registers every job and starts the cron loop. The scheduler stops
// on its own when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning || len(s.entries) > 0 {
		return nil
	}

	for _, job := range s.jobs {
		if err := ValidateCronSchedule(job.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s' for %s: %w", job.Schedule, job.Name, err)
		}
	}

	s.runCtx = ctx
	for _, job := range s.jobs {
		job := job
		id, err := s.cron.AddFunc(job.Schedule, func() {
			s.run(job)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		s.entries[job.Name] = id
	}

	s.cron.Start()
	s.isRunning = true

	for _, job := range s.jobs {
		next, _ := NextRunTime(job.Schedule, time.Now())
		zap.L().Info("scheduled job",
			zap.String("job", job.Name),
			zap.String("schedule", job.Schedule),
			zap.Time("next_run", next))
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for running jobs and stops the cron loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	done := s.cron.Stop()
	<-done.Done()

	s.isRunning = false
	zap.L().Info("scheduler stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunNow runs the named job immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

// Jobs lists the configured jobs with their next run time.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		status := JobStatus{Name: job.Name, Schedule: job.Schedule}
		if id, ok := s.entries[job.Name]; ok && s.isRunning {
			status.NextRun = s.cron.Entry(id).Next
		}
		if status.NextRun.IsZero() {
			status.NextRun, _ = NextRunTime(job.Schedule, now)
		}
		out = append(out, status)
	}
	return out
}

// run is called from cron goroutines. runCtx is set before the cron loop
// starts and must be read without s.mu, which Stop holds while it waits.
func (s *Scheduler) run(job Job) {
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		zap.L().Error("scheduled job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	zap.L().Info("scheduled job ran",
		zap.String("job", job.Name),
		zap.Duration("took", time.Since(start)))
}
