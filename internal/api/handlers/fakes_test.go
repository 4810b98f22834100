package handlers

import (
	"context"
	"time"

	"github.com/eventreg/server/internal/domain/events"
	"github.com/eventreg/server/internal/domain/users"
)

type fakeEventService struct {
	event        *events.Event
	detail       *events.Detail
	listings     []events.Listing
	stats        *events.Stats
	registration *events.RegistrationResult
	cancellation *events.CancellationResult
	err          error

	gotInput  events.CreateInput
	gotID     int64
	gotUserID int64
}

func (f *fakeEventService) Create(_ context.Context, input events.CreateInput) (*events.Event, error) {
	f.gotInput = input
	return f.event, f.err
}

func (f *fakeEventService) GetByID(_ context.Context, id int64) (*events.Detail, error) {
	f.gotID = id
	return f.detail, f.err
}

func (f *fakeEventService) List(context.Context) ([]events.Listing, error) {
	return f.listings, f.err
}

func (f *fakeEventService) ListUpcoming(context.Context) ([]events.Listing, error) {
	return f.listings, f.err
}

func (f *fakeEventService) Stats(_ context.Context, id int64) (*events.Stats, error) {
	f.gotID = id
	return f.stats, f.err
}

func (f *fakeEventService) Register(_ context.Context, eventID, userID int64) (*events.RegistrationResult, error) {
	f.gotID, f.gotUserID = eventID, userID
	return f.registration, f.err
}

func (f *fakeEventService) Cancel(_ context.Context, eventID, userID int64) (*events.CancellationResult, error) {
	f.gotID, f.gotUserID = eventID, userID
	return f.cancellation, f.err
}

type fakeUserService struct {
	user  *users.User
	users []users.User
	err   error
	gotID int64
}

func (f *fakeUserService) Create(_ context.Context, input users.CreateInput) (*users.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &users.User{ID: 1, Name: input.Name, Email: input.Email}, nil
}

func (f *fakeUserService) Get(_ context.Context, id int64) (*users.User, error) {
	f.gotID = id
	return f.user, f.err
}

func (f *fakeUserService) List(context.Context) ([]users.User, error) {
	return f.users, f.err
}

type fakeHealthStore struct {
	pingErr error
	version int64
	dirty   bool
	applied bool
	migErr  error
}

func (f fakeHealthStore) Ping(context.Context) error { return f.pingErr }

func (f fakeHealthStore) MigrationState(context.Context) (int64, bool, bool, error) {
	return f.version, f.dirty, f.applied, f.migErr
}

var future = time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
