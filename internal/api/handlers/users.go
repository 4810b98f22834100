package handlers

import (
	"context"
	"net/http"

	"github.com/eventreg/server/internal/api/problem"
	"github.com/eventreg/server/internal/domain/users"
)

const msgUserCreated = "User created successfully"

type UserService interface {
	Create(ctx context.Context, input users.CreateInput) (*users.User, error)
	Get(ctx context.Context, id int64) (*users.User, error)
	List(ctx context.Context) ([]users.User, error)
}

type UsersHandler struct {
	Service UserService
	Env     string
}

func NewUsersHandler(service UserService, env string) *UsersHandler {
	return &UsersHandler{Service: service, Env: env}
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input users.CreateInput
	if !decodeJSON(w, r, &input, h.Env) {
		return
	}

	user, err := h.Service.Create(r.Context(), input)
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusCreated, msgUserCreated, user)
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeList(w, items)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, msgUserIDInvalid, h.Env)
	if !ok {
		return
	}

	user, err := h.Service.Get(r.Context(), id)
	if err != nil {
		problem.Write(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", user)
}
