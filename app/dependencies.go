package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/tenant-platform/auth"
	"github.com/upb/tenant-platform/config"
	"github.com/upb/tenant-platform/handlers"
	"github.com/upb/tenant-platform/internal/observability"
	"github.com/upb/tenant-platform/jobs"
	"github.com/upb/tenant-platform/middleware"
	"github.com/upb/tenant-platform/repositories"
	"github.com/upb/tenant-platform/repositories/postgres"
	redisrepo "github.com/upb/tenant-platform/repositories/redis"
	"github.com/upb/tenant-platform/services/audit"
	"github.com/upb/tenant-platform/services/identity"
	"github.com/upb/tenant-platform/services/mail"
	"github.com/upb/tenant-platform/services/ratelimit"
	"github.com/upb/tenant-platform/services/users"
	"go.uber.org/zap"
)

const metricsNamespace = "tenant_platform"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  *goredis.Client // nil when sessions live in PostgreSQL
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Companies    repositories.CompanyRepository
	Users        repositories.UserRepository
	AuditLogs    repositories.AuditRepository
	Sessions     repositories.SessionRepository
	ActionTokens repositories.ActionTokenRepository
	TxManager    repositories.TransactionManager

	// Services
	Codec        *auth.TokenCodec
	AuditService *audit.AuditService
	AuditQuery   *audit.QueryService
	Accounts     *identity.Service
	UserService  *users.Service
	RateLimiter  *ratelimit.RateLimitService // nil when rate limiting is disabled

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	Metrics        *observability.Metrics // nil when metrics are disabled
	HealthHandler  *handlers.HealthHandler
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	AuditHandler   *handlers.AuditHandler

	// Background jobs
	Scheduler *jobs.Scheduler // nil when jobs are disabled

	closeOnce sync.Once
	closeErr  error
}

// NewDependencies connects to the database and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires everything on top of an open repository factory
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	if err := deps.initRepositories(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP()

	if err := deps.initJobs(); err != nil {
		_ = deps.AuditService.Stop(time.Second)
		deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories(ctx context.Context) error {
	repos := d.RepoFactory.NewRepositories()

	d.Companies = repos.Companies
	d.Users = repos.Users
	d.AuditLogs = repos.AuditLogs
	d.Sessions = repos.Sessions
	d.ActionTokens = repos.ActionTokens
	d.TxManager = d.RepoFactory.GetTransactionManager()

	if d.Config.Redis.Enabled() {
		client, err := redisrepo.NewClient(ctx, d.Config.Redis, d.Logger)
		if err != nil {
			return err
		}
		d.Redis = client
		d.Sessions = redisrepo.NewSessionRepository(client, d.Logger)
		d.Logger.Info("sessions stored in redis")
	}

	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initServices() error {
	cfg := d.Config

	d.Codec = auth.NewTokenCodec(auth.CodecConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	hasher := auth.NewBcryptHasher(0)

	d.AuditService = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := d.AuditService.Start(); err != nil {
		return err
	}
	d.AuditQuery = audit.NewQueryService(d.AuditLogs, d.Logger)

	notifier := mail.NewNotifier(mail.NewLogMailer(cfg.Mail.From, d.Logger), cfg.Mail.AppURL)

	d.Accounts = identity.NewService(identity.Dependencies{
		Companies:    d.Companies,
		Users:        d.Users,
		Sessions:     d.Sessions,
		ActionTokens: d.ActionTokens,
		TxManager:    d.TxManager,
		Codec:        d.Codec,
		Hasher:       hasher,
		Notifier:     notifier,
		Recorder:     d.AuditService,
	}, identity.Config{
		VerificationTokenTTL: cfg.Mail.VerificationTokenTTL,
		ResetTokenTTL:        cfg.Mail.ResetTokenTTL,
	}, d.Logger)

	d.UserService = users.NewService(d.Users, hasher, d.AuditService, d.Logger)

	if cfg.RateLimit.Enabled {
		d.RateLimiter = ratelimit.NewRateLimitService(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			IdleTTL:           cfg.RateLimit.IdleTTL,
		}, d.Logger)
	}

	return nil
}

func (d *Dependencies) initHTTP() {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Codec, d.Logger)

	if d.Config.Observability.MetricsEnabled {
		d.Metrics = observability.NewMetrics(metricsNamespace)
		d.Metrics.RegisterAuditStats(func() observability.AuditStats {
			stats := d.AuditService.GetStats()
			return observability.AuditStats{
				Pending: stats.PendingEvents,
				Written: stats.Written,
				Dropped: stats.Dropped,
				Failed:  stats.Failed,
			}
		})
	}

	checks := map[string]handlers.HealthChecker{"database": d.DB}
	if d.Redis != nil {
		checks["redis"] = redisrepo.ClientHealth{Client: d.Redis}
	}

	d.HealthHandler = handlers.NewHealthHandler(checks, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.Accounts, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.UserService, d.AuthMiddleware, d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.AuditQuery, d.Logger)
}

func (d *Dependencies) initJobs() error {
	if !d.Config.Jobs.Enabled {
		d.Logger.Info("background jobs disabled")
		return nil
	}

	// Avoid a typed-nil interface when rate limiting is off
	var sweeper jobs.BucketSweeper
	if d.RateLimiter != nil {
		sweeper = d.RateLimiter
	}

	scheduler, err := jobs.NewScheduler(d.Sessions, d.ActionTokens, sweeper, jobs.Config{
		CleanupInterval: d.Config.Jobs.CleanupInterval,
		SessionGrace:    d.Config.Jobs.SessionGrace,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.Scheduler = scheduler
	return nil
}

// StartBackground starts the scheduled jobs
func (d *Dependencies) StartBackground() {
	if d.Scheduler != nil {
		d.Scheduler.Start()
	}
}

// Close gracefully shuts down all dependencies. It is safe to call more than once.
func (d *Dependencies) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.closeErr = d.close(ctx)
	})
	return d.closeErr
}

func (d *Dependencies) close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Scheduler != nil {
		if err := d.Scheduler.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop scheduler: %w", err))
		}
	}

	// Drain queued audit entries before the pool goes away
	if d.AuditService != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.AuditService.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if err := d.closeRedis(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}

func (d *Dependencies) closeRedis() error {
	if d.Redis == nil {
		return nil
	}
	err := d.Redis.Close()
	d.Redis = nil
	return err
}
