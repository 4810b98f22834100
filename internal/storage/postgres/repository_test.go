package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventreg/server/internal/domain/events"
	"github.com/eventreg/server/internal/domain/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	when := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Microsecond)
	created := insertEvent(t, ctx, repo, "Go Meetup", when, "Toronto", 50)
	assert.Equal(t, int64(1), created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.Events().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Meetup", got.Title)
	assert.Equal(t, "Toronto", got.Location)
	assert.Equal(t, 50, got.Capacity)
	assert.Equal(t, 0, got.RegistrationCount)
	assert.True(t, when.Equal(got.DateTime))
}

func TestEventRepository_GetByIDMissing(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.Events().GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, events.ErrNotFound)
}

func TestEventRepository_CapacityCheckConstraint(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	_, err := repo.Events().Create(ctx, events.CreateParams{
		Title: "Too big", DateTime: time.Now().Add(time.Hour), Location: "Hall", Capacity: 1001,
	})
	assert.Error(t, err)
}

func TestEventRepository_ListOrdering(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	now := time.Now()

	insertEvent(t, ctx, repo, "Past", now.Add(-24*time.Hour), "Berlin", 10)
	insertEvent(t, ctx, repo, "Later", now.Add(72*time.Hour), "Amsterdam", 10)
	insertEvent(t, ctx, repo, "Soon B", now.Add(24*time.Hour), "Zurich", 10)
	insertEvent(t, ctx, repo, "Soon A", now.Add(24*time.Hour), "Athens", 10)

	all, err := repo.Events().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Later", all[0].Title)
	assert.Equal(t, "Past", all[3].Title)

	upcoming, err := repo.Events().ListUpcoming(ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, 3)
	assert.Equal(t, []string{"Soon A", "Soon B", "Later"}, []string{upcoming[0].Title, upcoming[1].Title, upcoming[2].Title})
}

func TestEventRepository_Registrations(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	event := insertEvent(t, ctx, repo, "Workshop", time.Now().Add(24*time.Hour), "Lisbon", 3)
	first := insertUser(t, ctx, repo, 1)
	second := insertUser(t, ctx, repo, 2)

	reg, err := repo.Events().CreateRegistration(ctx, event.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, reg.EventID)
	assert.Equal(t, first.ID, reg.UserID)

	_, err = repo.Events().CreateRegistration(ctx, event.ID, second.ID)
	require.NoError(t, err)

	_, err = repo.Events().CreateRegistration(ctx, event.ID, first.ID)
	assert.ErrorIs(t, err, events.ErrAlreadyRegistered)

	exists, err := repo.Events().RegistrationExists(ctx, event.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	attendees, err := repo.Events().ListRegisteredUsers(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 2)
	assert.Equal(t, second.ID, attendees[0].ID, "newest registration first")

	got, err := repo.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RegistrationCount)
	assert.Equal(t, 1, got.RemainingCapacity())

	require.NoError(t, repo.Events().DeleteRegistration(ctx, event.ID, first.ID))
	err = repo.Events().DeleteRegistration(ctx, event.ID, first.ID)
	assert.ErrorIs(t, err, events.ErrRegistrationMissing)
}

func TestEventRepository_LockForRegistrationCounts(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	event := insertEvent(t, ctx, repo, "Locked", time.Now().Add(time.Hour), "Oslo", 2)
	user := insertUser(t, ctx, repo, 1)
	_, err := repo.Events().CreateRegistration(ctx, event.ID, user.ID)
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx events.Store) error {
		locked, err := tx.Events().LockForRegistration(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, locked.RegistrationCount)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.Events().LockForRegistration(ctx, 999)
	assert.ErrorIs(t, err, events.ErrNotFound)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	first := insertUser(t, ctx, repo, 1)
	insertUser(t, ctx, repo, 2)

	_, err := repo.Users().Create(ctx, users.CreateParams{Name: "Dup", Email: first.Email})
	assert.ErrorIs(t, err, users.ErrEmailTaken)

	byEmail, err := repo.Users().GetByEmail(ctx, first.Email)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byEmail.ID)

	_, err = repo.Users().GetByID(ctx, 77)
	assert.ErrorIs(t, err, users.ErrNotFound)

	all, err := repo.Users().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].ID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(ctx context.Context, tx events.Store) error {
		insertEvent(t, ctx, tx.(*Repository), "Ghost", time.Now().Add(time.Hour), "Nowhere", 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := repo.Events().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	assert.Panics(t, func() {
		_ = repo.WithTx(ctx, func(ctx context.Context, tx events.Store) error {
			insertEvent(t, ctx, tx.(*Repository), "Ghost", time.Now().Add(time.Hour), "Nowhere", 1)
			panic("kaboom")
		})
	})

	all, err := repo.Events().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWithTx_Commits(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	err := repo.WithTx(ctx, func(ctx context.Context, tx events.Store) error {
		insertEvent(t, ctx, tx.(*Repository), "Kept", time.Now().Add(time.Hour), "Rome", 1)
		return nil
	})
	require.NoError(t, err)

	all, err := repo.Events().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMigrationVersion(t *testing.T) {
	_, dbURL := setupPostgres(t)

	version, dirty, err := MigrationVersion(dbURL, "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestHealthProbe(t *testing.T) {
	ctx := context.Background()
	_, pool := newTestRepository(t)
	probe := NewHealthProbe(pool)

	require.NoError(t, probe.Ping(ctx))

	version, dirty, ok, err := probe.MigrationState(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.Equal(t, int64(1), version)
}
