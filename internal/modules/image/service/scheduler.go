package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of background work run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Register schedules job. An empty schedule registers it for on-demand runs only.
func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)
	if job.Schedule == "" {
		slog.Info("registered on-demand job", "job", job.Name)
		return nil
	}

	if _, err := s.cron.AddFunc(job.Schedule, func() { s.run(context.Background(), job) }); err != nil {
		return err
	}
	slog.Info("scheduled job", "job", job.Name, "schedule", job.Schedule)
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		slog.Error("job failed", "job", job.Name, "error", err)
		return err
	}
	slog.Info("job completed", "job", job.Name, "duration", time.Since(start))
	return nil
}

// RunByName runs a registered job immediately.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// OrphanCleanupJob wraps CleanupOrphans for the scheduler.
func OrphanCleanupJob(svc ImageService, schedule string) Job {
	return Job{
		Name:     "orphan-image-cleanup",
		Schedule: schedule,
		Timeout:  10 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := svc.CleanupOrphans(ctx)
			if err != nil {
				return err
			}
			slog.Info("orphan images cleaned", "count", n)
			return nil
		},
	}
}
