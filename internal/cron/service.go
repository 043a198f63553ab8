package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/metrics"
)

const defaultResolution = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Resolution time.Duration
}

// Service runs each registered job on its own cadence. The shared lock keeps
// concurrent worker instances from sweeping at the same time; due times are
// tracked per instance, so a restart makes every job due again.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	resolution time.Duration
	lastRun    map[string]time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
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
	resolution := params.Resolution
	if resolution <= 0 {
		resolution = defaultResolution
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		resolution: resolution,
		lastRun:    make(map[string]time.Time),
	}, nil
}

// Run starts the scheduling loop until the context is canceled. Every job is
// due immediately on startup.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runDue(ctx, time.Now()); err != nil {
		s.logg.Error(ctx, "scheduled sweep failed", err)
	}
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case now := <-ticker.C:
			if err := s.runDue(ctx, now); err != nil {
				s.logg.Error(ctx, "scheduled sweep failed", err)
			}
		}
	}
}

func (s *Service) runDue(ctx context.Context, now time.Time) error {
	due := s.dueSchedules(now)
	if len(due) == 0 {
		return nil
	}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another worker instance holds the lock; skipping this sweep")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	for _, entry := range due {
		s.runJob(ctx, entry.Job)
		s.lastRun[entry.Job.Name()] = now
	}
	return nil
}

func (s *Service) dueSchedules(now time.Time) []Schedule {
	var due []Schedule
	for _, entry := range s.registry.Schedules() {
		last, ran := s.lastRun[entry.Job.Name()]
		if !ran || now.Sub(last) >= entry.Every {
			due = append(due, entry)
		}
	}
	return due
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(job.Name())
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}
