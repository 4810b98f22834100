package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eventreg/server/internal/config"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// TraceOptions controls the query tracer installed on the pool.
type TraceOptions struct {
	Enabled bool
	// IncludeParameters records bind values as span attributes. They carry
	// user emails and ids, so only development turns it on.
	IncludeParameters bool
}

func (o TraceOptions) tracerOptions() []otelpgx.Option {
	var opts []otelpgx.Option
	if o.IncludeParameters {
		opts = append(opts, otelpgx.WithIncludeQueryParameters())
	}
	return opts
}

// Open builds a connection pool and waits until the database answers a ping,
// retrying ConnectRetries times so the server can start alongside its
// database container.
func Open(ctx context.Context, cfg config.DatabaseConfig, tracing TraceOptions, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		poolConfig.MinConns = int32(cfg.MinConnections)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if tracing.Enabled {
		poolConfig.ConnConfig.Tracer = otelpgx.NewTracer(tracing.tracerOptions()...)
	}

	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.ConnectRetries; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", interval).Msg("database not ready, retrying")
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("connect to database: %w", ctx.Err())
			case <-time.After(interval):
			}
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			lastErr = err
			continue
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			lastErr = err
			continue
		}

		logger.Info().
			Int32("max_conns", poolConfig.MaxConns).
			Int32("min_conns", poolConfig.MinConns).
			Bool("tracing", tracing.Enabled).
			Msg("database connected")
		return pool, nil
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", cfg.ConnectRetries+1, lastErr)
}
