package jobs

import (
	"context"
	"fmt"
	"time"

	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/metrics"
	"github.com/robfig/cron/v3"
)

const defaultJobTimeout = 5 * time.Minute

type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		jobs:    make([]Job, 0),
		timeout: defaultJobTimeout,
	}
}

// Register adds a job and schedules it when it has a schedule.
func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)
	log := logger.L().WithField("job", job.Name())

	schedule := job.Schedule()
	if schedule == "" {
		log.Info("registered on-demand job")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.run(context.Background(), job) }); err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name(), err)
	}
	log.WithField("schedule", schedule).Info("scheduled job")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.L().WithField("jobs", len(s.jobs)).Info("job scheduler started")
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		logger.L().Info("job scheduler stopped")
	case <-ctx.Done():
		logger.L().Warn("job scheduler stopped before running jobs finished")
	}
}

// RunByName executes a registered job immediately.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("job %q is not registered", name)
}

func (s *Scheduler) JobNames() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := logger.FromContext(ctx).WithField("job", job.Name())
	start := time.Now()

	err := job.Execute(ctx)
	elapsed := time.Since(start)
	metrics.RecordJob(job.Name(), err == nil, elapsed)

	if err != nil {
		log.WithError(err).WithField("duration_ms", elapsed.Milliseconds()).Error("job failed")
		return err
	}
	log.WithField("duration_ms", elapsed.Milliseconds()).Debug("job completed")
	return nil
}
