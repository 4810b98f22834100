package events

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/eventreg/server/internal/domain/users"
)

// memoryStore is an in-process Store. WithTx serializes callers on a mutex,
// which stands in for the row lock.
type memoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	events        map[int64]Event
	users         map[int64]users.User
	registrations []Registration
	nextEventID   int64
	nextRegID     int64
	failWith      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: map[int64]Event{}, users: map[int64]users.User{}}
}

func (m *memoryStore) Events() Repository      { return memoryEvents{m} }
func (m *memoryStore) Users() users.Repository { return memoryUsers{m} }

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m)
}

func (m *memoryStore) addEvent(title string, when time.Time, capacity int) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	e := Event{ID: m.nextEventID, Title: title, DateTime: when, Location: "Hall", Capacity: capacity, CreatedAt: time.Now()}
	m.events[e.ID] = e
	return e
}

func (m *memoryStore) addUser(id int64, email string) users.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := users.User{ID: id, Name: "User", Email: email}
	m.users[id] = u
	return u
}

func (m *memoryStore) countFor(eventID int64) int {
	n := 0
	for _, r := range m.registrations {
		if r.EventID == eventID {
			n++
		}
	}
	return n
}

type memoryEvents struct{ m *memoryStore }

func (r memoryEvents) Create(ctx context.Context, p CreateParams) (*Event, error) {
	if r.m.failWith != nil {
		return nil, r.m.failWith
	}
	e := r.m.addEvent(p.Title, p.DateTime, p.Capacity)
	r.m.mu.Lock()
	e.Location = p.Location
	r.m.events[e.ID] = e
	r.m.mu.Unlock()
	return &e, nil
}

func (r memoryEvents) GetByID(ctx context.Context, id int64) (*Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return nil, r.m.failWith
	}
	e, ok := r.m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.RegistrationCount = r.m.countFor(id)
	return &e, nil
}

func (r memoryEvents) List(ctx context.Context) ([]Event, error) {
	return r.filter(func(Event) bool { return true }, func(a, b Event) bool { return a.DateTime.After(b.DateTime) })
}

func (r memoryEvents) ListUpcoming(ctx context.Context) ([]Event, error) {
	now := time.Now()
	return r.filter(func(e Event) bool { return e.DateTime.After(now) }, func(a, b Event) bool {
		if a.DateTime.Equal(b.DateTime) {
			return a.Location < b.Location
		}
		return a.DateTime.Before(b.DateTime)
	})
}

func (r memoryEvents) filter(keep func(Event) bool, less func(a, b Event) bool) ([]Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return nil, r.m.failWith
	}
	var out []Event
	for _, e := range r.m.events {
		if keep(e) {
			e.RegistrationCount = r.m.countFor(e.ID)
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

func (r memoryEvents) ListRegisteredUsers(ctx context.Context, eventID int64) ([]RegisteredUser, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []RegisteredUser
	for i := len(r.m.registrations) - 1; i >= 0; i-- {
		reg := r.m.registrations[i]
		if reg.EventID != eventID {
			continue
		}
		u := r.m.users[reg.UserID]
		out = append(out, RegisteredUser{ID: u.ID, Name: u.Name, Email: u.Email, RegisteredAt: reg.RegisteredAt})
	}
	return out, nil
}

func (r memoryEvents) LockForRegistration(ctx context.Context, id int64) (*Event, error) {
	return r.GetByID(ctx, id)
}

func (r memoryEvents) RegistrationExists(ctx context.Context, eventID, userID int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, reg := range r.m.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r memoryEvents) CreateRegistration(ctx context.Context, eventID, userID int64) (*Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, reg := range r.m.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			return nil, ErrAlreadyRegistered
		}
	}
	r.m.nextRegID++
	reg := Registration{ID: r.m.nextRegID, EventID: eventID, UserID: userID, RegisteredAt: time.Now()}
	r.m.registrations = append(r.m.registrations, reg)
	return &reg, nil
}

func (r memoryEvents) DeleteRegistration(ctx context.Context, eventID, userID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i, reg := range r.m.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			r.m.registrations = append(r.m.registrations[:i], r.m.registrations[i+1:]...)
			return nil
		}
	}
	return ErrRegistrationMissing
}

type memoryUsers struct{ m *memoryStore }

func (r memoryUsers) Create(ctx context.Context, p users.CreateParams) (*users.User, error) {
	return nil, errors.New("not supported")
}

func (r memoryUsers) GetByID(ctx context.Context, id int64) (*users.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

func (r memoryUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return nil, users.ErrNotFound
}

func (r memoryUsers) List(ctx context.Context) ([]users.User, error) {
	return nil, nil
}
