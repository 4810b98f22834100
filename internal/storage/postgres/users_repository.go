package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventreg/server/internal/domain/users"
	"github.com/eventreg/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	db queryer
}

const userColumns = `id, name, email, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (_ *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("create_user", start, err) }(time.Now())

	rows, err := r.db.Query(ctx, `
INSERT INTO users (name, email)
VALUES ($1, $2)
RETURNING `+userColumns, params.Name, params.Email)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[users.User])
	if isUniqueViolation(err, "") {
		return nil, users.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (_ *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_user", start, err) }(time.Now())

	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_user_by_email", start, err) }(time.Now())

	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// List returns every user, newest first.
func (r *UserRepository) List(ctx context.Context) (_ []users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_users", start, err) }(time.Now())

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[users.User])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return items, nil
}

func (r *UserRepository) one(ctx context.Context, sql string, args ...any) (*users.User, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[users.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(users.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}
