package events

import (
	"context"
	"errors"
	"time"

	"github.com/eventreg/server/internal/domain/users"
)

var (
	ErrNotFound            = errors.New("event not found")
	ErrAlreadyRegistered   = errors.New("user already registered for event")
	ErrRegistrationMissing = errors.New("registration not found")
)

type Event struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	DateTime          time.Time `json:"date_time"`
	Location          string    `json:"location"`
	Capacity          int       `json:"capacity"`
	RegistrationCount int       `json:"registration_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RemainingCapacity never goes below zero.
func (e Event) RemainingCapacity() int {
	remaining := e.Capacity - e.RegistrationCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Summary is the trimmed view returned alongside a new registration.
type Summary struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	DateTime time.Time `json:"date_time"`
}

type RegisteredUser struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type Registration struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	UserID       int64     `json:"user_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

type CreateParams struct {
	Title    string
	DateTime time.Time
	Location string
	Capacity int
}

// Repository covers events and their registrations.
//
// LockForRegistration must take a row lock on the event that is held until
// the surrounding transaction ends; outside a transaction it is only a read.
// Lookups that miss return ErrNotFound.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Event, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	List(ctx context.Context) ([]Event, error)
	ListUpcoming(ctx context.Context) ([]Event, error)
	ListRegisteredUsers(ctx context.Context, eventID int64) ([]RegisteredUser, error)

	LockForRegistration(ctx context.Context, id int64) (*Event, error)
	RegistrationExists(ctx context.Context, eventID, userID int64) (bool, error)
	CreateRegistration(ctx context.Context, eventID, userID int64) (*Registration, error)
	DeleteRegistration(ctx context.Context, eventID, userID int64) error
}

// Store groups the repositories the workflows touch and opens transactions
// over them. The Store passed to fn is bound to a single transaction.
type Store interface {
	Events() Repository
	Users() users.Repository
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
}
