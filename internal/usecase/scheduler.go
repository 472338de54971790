package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"LandScout/internal/ports"
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Run(ctx context.Context, maxItems int) (int, error)
}

// Rescorer rescores the stored dataset.
type Rescorer interface {
	RescoreAll(ctx context.Context) (int, error)
}

// ScheduleSettings lists the cron expressions to register.
type ScheduleSettings struct {
	Ingest  []string
	Rescore string
	// JobTimeout bounds a single scheduled run; zero means unbounded.
	JobTimeout time.Duration
}

// Scheduler wires the cron-like driver with the ingestion and scoring use cases.
type Scheduler struct {
	driver   ports.Scheduler
	ingester Ingester
	rescorer Rescorer
	settings ScheduleSettings
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, ingester Ingester, rescorer Rescorer, settings ScheduleSettings, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:   driver,
		ingester: ingester,
		rescorer: rescorer,
		settings: settings,
		logger:   logger.With("component", "schedule"),
	}
}

// Start registers the jobs and starts the driver. Jobs run with ctx, so
// cancelling it aborts a run in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	if s.ingester != nil {
		for i, spec := range s.settings.Ingest {
			name := fmt.Sprintf("ingest-%d", i+1)
			if err := s.driver.AddJob(name, spec, s.ingestJob(ctx, name)); err != nil {
				return fmt.Errorf("register %s: %w", name, err)
			}
		}
	}

	if s.rescorer != nil && s.settings.Rescore != "" {
		if err := s.driver.AddJob("rescore", s.settings.Rescore, s.rescoreJob(ctx)); err != nil {
			return fmt.Errorf("register rescore: %w", err)
		}
	}

	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) ingestJob(ctx context.Context, name string) func(time.Time) {
	return func(trigger time.Time) {
		runCtx, cancel := s.jobContext(ctx)
		defer cancel()

		created, err := s.ingester.Run(runCtx, 0)
		if err != nil {
			s.logger.Error("scheduled ingestion failed", "job", name, "trigger", trigger, "created", created, "error", err)
			return
		}
		s.logger.Info("scheduled ingestion done", "job", name, "trigger", trigger, "created", created)
	}
}

func (s *Scheduler) rescoreJob(ctx context.Context) func(time.Time) {
	return func(trigger time.Time) {
		runCtx, cancel := s.jobContext(ctx)
		defer cancel()

		updated, err := s.rescorer.RescoreAll(runCtx)
		if err != nil {
			s.logger.Error("scheduled rescore failed", "trigger", trigger, "updated", updated, "error", err)
			return
		}
		s.logger.Info("scheduled rescore done", "trigger", trigger, "updated", updated)
	}
}

func (s *Scheduler) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.JobTimeout > 0 {
		return context.WithTimeout(ctx, s.settings.JobTimeout)
	}
	return context.WithCancel(ctx)
}
