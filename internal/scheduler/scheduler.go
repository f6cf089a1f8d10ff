package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/go-co-op/gocron/v2"
)

type taskFn func(ctx context.Context) error

// Scheduler runs background jobs such as the periodic portfolio refresh.
// Every run gets its own request id and a recovered panic fails only that run.
type Scheduler struct {
	scheduler gocron.Scheduler
	baseCtx   context.Context
}

func New(ctx context.Context) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("gocron.NewScheduler: %w", err)
	}
	return &Scheduler{scheduler: scheduler, baseCtx: ctx}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Error("Scheduler shutdown error", slog.String("err", err.Error()))
	}
}

func (s *Scheduler) createJob(jobDefinition gocron.JobDefinition, name string, fn taskFn, startImmediately bool) error {
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	if startImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := s.scheduler.NewJob(
		jobDefinition,
		gocron.NewTask(s.taskWithRecover(fn, name)),
		opts...,
	)
	if err != nil {
		slog.Error("Scheduler creating job error", slog.String("jobName", name), slog.String("err", err.Error()))
		return fmt.Errorf("create job %q: %w", name, err)
	}

	return nil
}

func (s *Scheduler) NewIntervalJob(name string, fn taskFn, interval time.Duration, startImmediately bool) error {
	return s.createJob(gocron.DurationJob(interval), name, fn, startImmediately)
}

func (s *Scheduler) NewCrontabJob(name string, fn taskFn, crontab string, startImmediately bool) error {
	return s.createJob(gocron.CronJob(crontab, true), name, fn, startImmediately)
}

func (s *Scheduler) taskWithRecover(fn taskFn, jobName string) func() {
	return func() {
		ctx := utils.CreateCtxWithRqID(s.baseCtx)
		rqID := utils.GetRequestIDFromCtx(ctx)

		defer func() {
			if r := recover(); r != nil {
				slog.Error(
					"Panic recovered in scheduler job",
					slog.String("rqID", rqID),
					slog.String("jobName", jobName),
					slog.Any("panic", r),
					slog.String("stacktrace", string(debug.Stack())),
				)
			}
		}()

		slog.Info("job start", slog.String("rqID", rqID), slog.String("jobName", jobName))

		if err := fn(ctx); err != nil {
			slog.Error("job failed", slog.String("rqID", rqID), slog.String("jobName", jobName), slog.String("err", err.Error()))
			return
		}

		slog.Info("job completed", slog.String("rqID", rqID), slog.String("jobName", jobName))
	}
}
