package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// WorkerParams configure the cron worker.
type WorkerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Worker runs registered jobs on a fixed cadence, one instance at a time.
type Worker struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewWorker builds a cron worker.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Worker{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes one cycle immediately, then ticks until the context ends.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.runCycle(ctx); err != nil {
		w.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "cron worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := w.runCycle(ctx); err != nil {
				w.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) error {
	locked, err := w.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		w.logg.Info(ctx, "another worker holds the cron lock; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := w.lock.Release(ctx); relErr != nil {
			w.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	w.logg.Info(ctx, "scheduled run starting")
	for _, job := range w.registry.Jobs() {
		w.runJob(ctx, job)
	}
	w.logg.Info(ctx, "scheduled run complete")
	return nil
}

func (w *Worker) runJob(ctx context.Context, job Job) {
	jobCtx := w.logg.WithField(ctx, "job", job.Name())
	w.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	if w.metrics != nil {
		w.metrics.ObserveDuration(job.Name(), duration)
	}
	jobCtx = w.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		w.logg.Error(jobCtx, "job failed", err)
		if w.metrics != nil {
			w.metrics.IncFailure(job.Name())
		}
		return
	}
	w.logg.Info(jobCtx, "job completed")
	if w.metrics != nil {
		w.metrics.IncSuccess(job.Name())
	}
}
