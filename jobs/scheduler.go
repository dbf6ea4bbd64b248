// Package jobs runs periodic maintenance in the background
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const cleanupJobName = "expired-credentials-cleanup"

// ExpiredPurger deletes records that expired before cutoff
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// BucketSweeper evicts idle in-memory rate limit buckets
type BucketSweeper interface {
	Cleanup() int
}

// Config holds scheduler settings
type Config struct {
	CleanupInterval time.Duration
	SessionGrace    time.Duration
	Timeout         time.Duration
}

// Scheduler purges expired sessions and action tokens on an interval
type Scheduler struct {
	scheduler gocron.Scheduler
	sessions  ExpiredPurger
	tokens    ExpiredPurger
	sweeper   BucketSweeper
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a scheduler with the cleanup job registered.
// sweeper may be nil when rate limiting is disabled.
func NewScheduler(sessions, tokens ExpiredPurger, sweeper BucketSweeper, config Config, logger *zap.Logger) (*Scheduler, error) {
	if config.CleanupInterval <= 0 {
		return nil, errors.New("cleanup interval must be positive")
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		scheduler: scheduler,
		sessions:  sessions,
		tokens:    tokens,
		sweeper:   sweeper,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(config.CleanupInterval),
		gocron.NewTask(s.runCleanup),
		gocron.WithName(cleanupJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to register %s job: %w", cleanupJobName, err)
	}

	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("starting background jobs",
		zap.Duration("cleanup_interval", s.config.CleanupInterval))
	s.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	s.logger.Info("stopping background jobs")
	return s.scheduler.Shutdown()
}

// CleanupResult reports what one cleanup pass removed
type CleanupResult struct {
	Sessions int64
	Tokens   int64
	Buckets  int
}

// RunCleanup performs one cleanup pass. Failures of one step do not stop the others.
func (s *Scheduler) RunCleanup(ctx context.Context) (CleanupResult, error) {
	var (
		result CleanupResult
		errs   []error
	)
	now := s.now().UTC()

	if s.sessions != nil {
		n, err := s.sessions.DeleteExpired(ctx, now.Add(-s.config.SessionGrace))
		if err != nil {
			errs = append(errs, fmt.Errorf("sessions: %w", err))
		}
		result.Sessions = n
	}

	if s.tokens != nil {
		n, err := s.tokens.DeleteExpired(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("action tokens: %w", err))
		}
		result.Tokens = n
	}

	if s.sweeper != nil {
		result.Buckets = s.sweeper.Cleanup()
	}

	return result, errors.Join(errs...)
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	result, err := s.RunCleanup(ctx)
	if err != nil {
		s.logger.Error("cleanup job failed", zap.Error(err))
	}
	s.logger.Info("cleanup job finished",
		zap.Int64("sessions_deleted", result.Sessions),
		zap.Int64("tokens_deleted", result.Tokens),
		zap.Int("buckets_evicted", result.Buckets))
}
