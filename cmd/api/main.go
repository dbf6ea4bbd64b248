package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/tenant-platform/app"
	"github.com/upb/tenant-platform/config"
	"github.com/upb/tenant-platform/internal/observability"
	"github.com/upb/tenant-platform/repositories/postgres"
	"github.com/upb/tenant-platform/routes"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tenant-platform",
		Short:         "Multitenant user and company management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and the background cleanup jobs.

Configuration is read from the environment and an optional .env file.
The server drains in-flight requests on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending database migrations before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			factory, err := postgres.NewRepositoryFactory(cfg, logger)
			if err != nil {
				return err
			}
			defer factory.Close()

			if err := factory.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

func setup(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, migrate bool) error {
	cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}

	closeCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	}

	if migrate {
		if err := deps.RepoFactory.Migrate(ctx); err != nil {
			c, cancel := closeCtx()
			defer cancel()
			_ = deps.Close(c)
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("migrations applied")
	}

	deps.StartBackground()

	srv := &http.Server{
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ln, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		c, cancel := closeCtx()
		defer cancel()
		_ = deps.Close(c)
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
	}

	logger.Info("server listening",
		zap.String("address", ln.Addr().String()),
		zap.String("environment", cfg.Environment),
		zap.Bool("tls", cfg.Server.TLS.Enabled))

	var tls *tlsFiles
	if cfg.Server.TLS.Enabled {
		tls = &tlsFiles{cert: cfg.Server.TLS.CertFile, key: cfg.Server.TLS.KeyFile}
	}
	serveErr := runServer(ctx, srv, ln, tls, cfg.Server.ShutdownTimeout, logger)

	c, cancel := closeCtx()
	defer cancel()
	if err := deps.Close(c); err != nil {
		logger.Error("failed to close dependencies", zap.Error(err))
	}
	return serveErr
}

type tlsFiles struct {
	cert string
	key  string
}

// runServer serves on ln until ctx is cancelled, then drains connections
// for at most shutdownTimeout.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener, tls *tlsFiles, shutdownTimeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls != nil {
			err = srv.ServeTLS(ln, tls.cert, tls.key)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
