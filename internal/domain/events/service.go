package events

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/eventreg/server/internal/domain/apperr"
	"github.com/eventreg/server/internal/domain/users"
	"github.com/eventreg/server/internal/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/eventreg/server/internal/domain/events"

const (
	msgEventNotFound        = "Event not found"
	msgUserNotFound         = "User not found"
	msgPastEvent            = "Cannot register for past events"
	msgAlreadyRegistered    = "User is already registered for this event"
	msgEventFull            = "Event is full"
	msgRegistrationNotFound = "Registration not found. User was not registered for this event."
	msgCancelled            = "Registration cancelled successfully"
)

// Registration outcomes, used as the metrics label.
const (
	outcomeSuccess   = "success"
	outcomeNotFound  = "not_found"
	outcomePast      = "past_event"
	outcomeDuplicate = "duplicate"
	outcomeFull      = "full"
	outcomeInvalid   = "invalid"
	outcomeError     = "error"
)

// Listing is an event annotated with its remaining capacity.
type Listing struct {
	Event
	RemainingCapacity int `json:"remaining_capacity"`
}

// Detail is an event with everyone registered for it, newest first.
type Detail struct {
	Event
	RegisteredUsers []RegisteredUser `json:"registered_users"`
}

// Stats summarizes how full an event is. The percentage is rounded to two
// decimal places.
type Stats struct {
	EventID                int64   `json:"event_id"`
	EventTitle             string  `json:"event_title"`
	TotalRegistrations     int     `json:"total_registrations"`
	Capacity               int     `json:"capacity"`
	RemainingCapacity      int     `json:"remaining_capacity"`
	CapacityUsedPercentage float64 `json:"capacity_used_percentage"`
}

// RegistrationResult is returned by Register.
type RegistrationResult struct {
	Registration Registration `json:"registration"`
	Event        Summary      `json:"event"`
	User         users.User   `json:"user"`
}

// CancellationResult confirms which registration Cancel removed.
type CancellationResult struct {
	Message string `json:"message"`
	EventID int64  `json:"event_id"`
	UserID  int64  `json:"user_id"`
}

// Service implements the event workflows on top of a Store.
type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for the future-date checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService returns a Service backed by store. It reads the wall clock
// unless WithClock is given.
func NewService(store Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.With().Str("component", "events").Logger(),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*Event, error) {
	params, err := input.validate(s.now())
	if err != nil {
		return nil, err
	}

	event, err := s.store.Events().Create(ctx, params)
	if err != nil {
		return nil, apperr.Storage("Failed to create event", err)
	}

	metrics.EventsCreatedTotal.Inc()
	s.logger.Info().Int64("event_id", event.ID).Int("capacity", event.Capacity).Msg("event created")
	return event, nil
}

// GetByID loads the event and its attendee list concurrently.
func (s *Service) GetByID(ctx context.Context, id int64) (*Detail, error) {
	var (
		event     *Event
		attendees []RegisteredUser
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.store.Events().GetByID(gctx, id)
		event = found
		return err
	})
	g.Go(func() error {
		found, err := s.store.Events().ListRegisteredUsers(gctx, id)
		attendees = found
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound(msgEventNotFound)
		}
		return nil, apperr.Storage("Failed to retrieve event", err)
	}

	if attendees == nil {
		attendees = []RegisteredUser{}
	}
	return &Detail{Event: *event, RegisteredUsers: attendees}, nil
}

func (s *Service) List(ctx context.Context) ([]Listing, error) {
	items, err := s.store.Events().List(ctx)
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve events", err)
	}
	return toListings(items), nil
}

// ListUpcoming returns future events ordered by date, then location.
func (s *Service) ListUpcoming(ctx context.Context) ([]Listing, error) {
	items, err := s.store.Events().ListUpcoming(ctx)
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve upcoming events", err)
	}
	return toListings(items), nil
}

func (s *Service) Stats(ctx context.Context, id int64) (*Stats, error) {
	event, err := s.store.Events().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound(msgEventNotFound)
		}
		return nil, apperr.Storage("Failed to retrieve event statistics", err)
	}

	used := 0.0
	if event.Capacity > 0 {
		used = math.Round(float64(event.RegistrationCount)/float64(event.Capacity)*100*100) / 100
	}

	return &Stats{
		EventID:                event.ID,
		EventTitle:             event.Title,
		TotalRegistrations:     event.RegistrationCount,
		Capacity:               event.Capacity,
		RemainingCapacity:      event.RemainingCapacity(),
		CapacityUsedPercentage: used,
	}, nil
}

// Register reserves a seat for userID on eventID.
//
// Every step runs in one transaction that holds the event's row lock, so
// concurrent registrations for the same event are serialized and the
// registration count can never pass capacity.
func (s *Service) Register(ctx context.Context, eventID, userID int64) (*RegistrationResult, error) {
	ctx, span := s.tracer.Start(ctx, "events.Register", trace.WithAttributes(
		attribute.Int64("event.id", eventID),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	outcome := outcomeError
	defer func() {
		metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
		span.SetAttributes(attribute.String("registration.outcome", outcome))
	}()

	if eventID < 1 || userID < 1 {
		outcome = outcomeInvalid
		return nil, apperr.Validation("Validation failed", idFieldErrors(eventID, userID)...)
	}

	var result *RegistrationResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		event, err := tx.Events().LockForRegistration(ctx, eventID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				outcome = outcomeNotFound
				return apperr.NotFound(msgEventNotFound)
			}
			return err
		}

		if !event.DateTime.After(s.now()) {
			outcome = outcomePast
			return apperr.InvalidState(msgPastEvent, nil)
		}

		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				outcome = outcomeNotFound
				return apperr.NotFound(msgUserNotFound)
			}
			return err
		}

		exists, err := tx.Events().RegistrationExists(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if exists {
			outcome = outcomeDuplicate
			return apperr.Conflict(msgAlreadyRegistered)
		}

		if event.RegistrationCount >= event.Capacity {
			outcome = outcomeFull
			metrics.CapacityRejectionsTotal.Inc()
			return apperr.InvalidState(msgEventFull, map[string]any{
				"capacity":              event.Capacity,
				"current_registrations": event.RegistrationCount,
			})
		}

		registration, err := tx.Events().CreateRegistration(ctx, eventID, userID)
		if err != nil {
			if errors.Is(err, ErrAlreadyRegistered) {
				outcome = outcomeDuplicate
				return apperr.Conflict(msgAlreadyRegistered)
			}
			return err
		}

		result = &RegistrationResult{
			Registration: *registration,
			Event:        Summary{ID: event.ID, Title: event.Title, DateTime: event.DateTime},
			User:         *user,
		}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "register failed")
		return nil, apperr.Storage("Failed to register user", err)
	}

	outcome = outcomeSuccess
	s.logger.Info().
		Int64("event_id", eventID).
		Int64("user_id", userID).
		Int64("registration_id", result.Registration.ID).
		Msg("user registered")
	return result, nil
}

// Cancel removes a registration. Unlike Register it does not look at the
// event date; deleting a row can never break the capacity bound.
func (s *Service) Cancel(ctx context.Context, eventID, userID int64) (*CancellationResult, error) {
	ctx, span := s.tracer.Start(ctx, "events.Cancel", trace.WithAttributes(
		attribute.Int64("event.id", eventID),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	if eventID < 1 || userID < 1 {
		return nil, apperr.Validation("Validation failed", idFieldErrors(eventID, userID)...)
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.Events().GetByID(ctx, eventID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return apperr.NotFound(msgEventNotFound)
			}
			return err
		}

		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				return apperr.NotFound(msgUserNotFound)
			}
			return err
		}

		if err := tx.Events().DeleteRegistration(ctx, eventID, userID); err != nil {
			if errors.Is(err, ErrRegistrationMissing) {
				return apperr.NotFound(msgRegistrationNotFound)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return nil, apperr.Storage("Failed to cancel registration", err)
	}

	metrics.CancellationsTotal.Inc()
	s.logger.Info().Int64("event_id", eventID).Int64("user_id", userID).Msg("registration cancelled")
	return &CancellationResult{Message: msgCancelled, EventID: eventID, UserID: userID}, nil
}

func toListings(items []Event) []Listing {
	listings := make([]Listing, 0, len(items))
	for _, item := range items {
		listings = append(listings, Listing{Event: item, RemainingCapacity: item.RemainingCapacity()})
	}
	return listings
}

func idFieldErrors(eventID, userID int64) []apperr.FieldError {
	var fields []apperr.FieldError
	if eventID < 1 {
		fields = append(fields, apperr.FieldError{Field: "id", Message: "Event ID must be a positive integer", Value: eventID})
	}
	if userID < 1 {
		fields = append(fields, apperr.FieldError{Field: "user_id", Message: "User ID must be a positive integer", Value: userID})
	}
	return fields
}
