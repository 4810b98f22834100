package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const undefinedTable = "42P01"

// HealthProbe answers the liveness checks behind GET /health.
type HealthProbe struct {
	pool *pgxpool.Pool
}

func NewHealthProbe(pool *pgxpool.Pool) *HealthProbe {
	return &HealthProbe{pool: pool}
}

func (p *HealthProbe) Ping(ctx context.Context) error {
	var one int
	return p.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// MigrationState reads the golang-migrate bookkeeping table. A missing table
// or empty table reports ok=false rather than an error.
func (p *HealthProbe) MigrationState(ctx context.Context) (int64, bool, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := p.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == undefinedTable) {
			return 0, false, false, nil
		}
		return 0, false, false, err
	}
	return version, dirty, true, nil
}
