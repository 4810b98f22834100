package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/eventreg/server/internal/api"
	"github.com/eventreg/server/internal/config"
	"github.com/eventreg/server/internal/domain/events"
	"github.com/eventreg/server/internal/domain/users"
	"github.com/eventreg/server/internal/metrics"
	"github.com/eventreg/server/internal/storage/postgres"
	"github.com/eventreg/server/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout   = 10 * time.Second
	collectorInterval = 15 * time.Second
)

type serveOptions struct {
	host        string
	port        int
	skipMigrate bool
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply pending database migrations unless --skip-migrate is set
- Serve the events and users API, /health and /metrics
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug --log-format console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			applyServeFlags(&cfg, opts)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 3000)")
	cmd.Flags().BoolVar(&opts.skipMigrate, "skip-migrate", false, "do not apply migrations on startup")
	return cmd
}

func applyServeFlags(cfg *config.Config, opts *serveOptions) {
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
}

func runServer(ctx context.Context, cfg config.Config, opts *serveOptions) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Str("version", Version).Msg("starting event registration server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if !opts.skipMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return err
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := postgres.Open(ctx, cfg.Database, dbTraceOptions(cfg), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	collector := metrics.NewDBCollector(pool)
	go collector.Start(ctx, collectorInterval)
	defer collector.Stop()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	services := api.Services{
		Events: events.NewService(repo, logger),
		Users:  users.NewService(repo.Users(), logger),
		Health: postgres.NewHealthProbe(pool),
	}
	build := api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(ctx, cfg, logger, services, build),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return serve(ctx, server, logger)
}

// serve runs server until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}

// dbTraceOptions keeps bind values, which include user emails, out of
// exported spans everywhere but development.
func dbTraceOptions(cfg config.Config) postgres.TraceOptions {
	return postgres.TraceOptions{
		Enabled:           cfg.Tracing.Enabled,
		IncludeParameters: cfg.Tracing.Enabled && strings.EqualFold(cfg.Environment, "development"),
	}
}
