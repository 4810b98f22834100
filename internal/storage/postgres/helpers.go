package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint failure,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// notFound wraps a domain sentinel so it also matches pgx.ErrNoRows, which
// keeps expected misses out of the query error metrics.
func notFound(sentinel error) error {
	return fmt.Errorf("%w: %w", sentinel, pgx.ErrNoRows)
}
