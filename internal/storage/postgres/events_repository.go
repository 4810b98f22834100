package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventreg/server/internal/domain/events"
	"github.com/eventreg/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	db queryer
}

// Column order matches events.Event so rows scan with RowToStructByPos.
const eventColumns = `
       e.id, e.title, e.date_time, e.location, e.capacity,
       (SELECT COUNT(*)::int FROM registrations r WHERE r.event_id = e.id) AS registration_count,
       e.created_at, e.updated_at`

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("create_event", start, err) }(time.Now())

	event := events.Event{
		Title:    params.Title,
		DateTime: params.DateTime,
		Location: params.Location,
		Capacity: params.Capacity,
	}
	err = r.db.QueryRow(ctx, `
INSERT INTO events (title, date_time, location, capacity)
VALUES ($1, $2, $3, $4)
RETURNING id, date_time, created_at, updated_at`,
		params.Title, params.DateTime, params.Location, params.Capacity,
	).Scan(&event.ID, &event.DateTime, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &event, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_event", start, err) }(time.Now())

	rows, err := r.db.Query(ctx, `SELECT`+eventColumns+`
  FROM events e
 WHERE e.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	event, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[events.Event])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(events.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// List returns every event, latest date first.
func (r *EventRepository) List(ctx context.Context) (_ []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_events", start, err) }(time.Now())

	return r.collect(ctx, `SELECT`+eventColumns+`
  FROM events e
 ORDER BY e.date_time DESC, e.id DESC`)
}

// ListUpcoming returns events that have not started, soonest first and then
// alphabetically by location.
func (r *EventRepository) ListUpcoming(ctx context.Context) (_ []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_upcoming_events", start, err) }(time.Now())

	return r.collect(ctx, `SELECT`+eventColumns+`
  FROM events e
 WHERE e.date_time > now()
 ORDER BY e.date_time ASC, e.location ASC, e.id ASC`)
}

func (r *EventRepository) collect(ctx context.Context, sql string, args ...any) ([]events.Event, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[events.Event])
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return items, nil
}

func (r *EventRepository) ListRegisteredUsers(ctx context.Context, eventID int64) (_ []events.RegisteredUser, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_registered_users", start, err) }(time.Now())

	rows, err := r.db.Query(ctx, `
SELECT u.id, u.name, u.email, r.registered_at
  FROM registrations r
  JOIN users u ON u.id = r.user_id
 WHERE r.event_id = $1
 ORDER BY r.registered_at DESC, r.id DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registered users: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[events.RegisteredUser])
	if err != nil {
		return nil, fmt.Errorf("scan registered users: %w", err)
	}
	return items, nil
}

// LockForRegistration takes the event row lock and then counts registrations.
// The count runs as its own statement so that under READ COMMITTED it sees
// every registration committed by whoever held the lock before us.
func (r *EventRepository) LockForRegistration(ctx context.Context, id int64) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("lock_event", start, err) }(time.Now())

	var event events.Event
	err = r.db.QueryRow(ctx, `
SELECT id, title, date_time, location, capacity, created_at, updated_at
  FROM events
 WHERE id = $1
   FOR UPDATE`, id,
	).Scan(&event.ID, &event.Title, &event.DateTime, &event.Location, &event.Capacity, &event.CreatedAt, &event.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(events.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock event: %w", err)
	}

	err = r.db.QueryRow(ctx, `SELECT COUNT(*)::int FROM registrations WHERE event_id = $1`, id).
		Scan(&event.RegistrationCount)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return &event, nil
}

func (r *EventRepository) RegistrationExists(ctx context.Context, eventID, userID int64) (_ bool, err error) {
	defer func(start time.Time) { metrics.RecordQuery("registration_exists", start, err) }(time.Now())

	var exists bool
	err = r.db.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

func (r *EventRepository) CreateRegistration(ctx context.Context, eventID, userID int64) (_ *events.Registration, err error) {
	defer func(start time.Time) { metrics.RecordQuery("create_registration", start, err) }(time.Now())

	var reg events.Registration
	err = r.db.QueryRow(ctx, `
INSERT INTO registrations (event_id, user_id)
VALUES ($1, $2)
RETURNING id, event_id, user_id, registered_at`,
		eventID, userID,
	).Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.RegisteredAt)
	if isUniqueViolation(err, "registrations_event_user_key") {
		return nil, events.ErrAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return &reg, nil
}

func (r *EventRepository) DeleteRegistration(ctx context.Context, eventID, userID int64) (err error) {
	defer func(start time.Time) { metrics.RecordQuery("delete_registration", start, err) }(time.Now())

	tag, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(events.ErrRegistrationMissing)
	}
	return nil
}
