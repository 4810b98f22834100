package handlers

import (
	"context"
	"net/http"

	"github.com/eventreg/server/internal/api/problem"
	"github.com/eventreg/server/internal/domain/events"
)

const (
	msgEventCreated   = "Event created successfully"
	msgUserRegistered = "User registered successfully"
)

// EventService is the subset of events.Service the handlers call.
type EventService interface {
	Create(ctx context.Context, input events.CreateInput) (*events.Event, error)
	GetByID(ctx context.Context, id int64) (*events.Detail, error)
	List(ctx context.Context) ([]events.Listing, error)
	ListUpcoming(ctx context.Context) ([]events.Listing, error)
	Stats(ctx context.Context, id int64) (*events.Stats, error)
	Register(ctx context.Context, eventID, userID int64) (*events.RegistrationResult, error)
	Cancel(ctx context.Context, eventID, userID int64) (*events.CancellationResult, error)
}

type EventsHandler struct {
	Service EventService
	Env     string
}

func NewEventsHandler(service EventService, env string) *EventsHandler {
	return &EventsHandler{Service: service, Env: env}
}

type createdEvent struct {
	EventID int64         `json:"event_id"`
	Event   *events.Event `json:"event"`
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input events.CreateInput
	if !decodeJSON(w, r, &input, h.Env) {
		return
	}

	event, err := h.Service.Create(r.Context(), input)
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}

	writeData(w, http.StatusCreated, msgEventCreated, createdEvent{EventID: event.ID, Event: event})
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeList(w, items)
}

func (h *EventsHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListUpcoming(r.Context())
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeList(w, items)
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, msgEventIDInvalid, h.Env)
	if !ok {
		return
	}

	detail, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", detail)
}

func (h *EventsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, msgEventIDInvalid, h.Env)
	if !ok {
		return
	}

	stats, err := h.Service.Stats(r.Context(), id)
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

func (h *EventsHandler) Register(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := h.registrationIDs(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Register(r.Context(), eventID, userID)
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusCreated, msgUserRegistered, result)
}

func (h *EventsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := h.registrationIDs(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Cancel(r.Context(), eventID, userID)
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", result)
}

// registrationIDs reads the event id from the path and user_id from the body.
func (h *EventsHandler) registrationIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	eventID, ok := pathID(w, r, msgEventIDInvalid, h.Env)
	if !ok {
		return 0, 0, false
	}

	var body userIDBody
	if !decodeJSON(w, r, &body, h.Env) {
		return 0, 0, false
	}
	userID, appErr := body.parse()
	if appErr != nil {
		problem.Write(w, r, appErr, h.Env)
		return 0, 0, false
	}
	return eventID, userID, true
}
