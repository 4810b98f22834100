package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eventreg/server/internal/domain/apperr"
	"github.com/eventreg/server/internal/domain/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersHandler_Create(t *testing.T) {
	h := NewUsersHandler(&fakeUserService{}, "test")

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
	rec := serve("POST /api/users", h.Create, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "User created successfully", body["message"])
	assert.Equal(t, "ada@example.com", body["data"].(map[string]any)["email"])
}

func TestUsersHandler_CreateConflict(t *testing.T) {
	h := NewUsersHandler(&fakeUserService{err: apperr.Conflict("User with this email already exists")}, "test")

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
	rec := serve("POST /api/users", h.Create, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with this email already exists", decodeBody(t, rec)["message"])
}

func TestUsersHandler_List(t *testing.T) {
	h := NewUsersHandler(&fakeUserService{users: []users.User{{ID: 2, Name: "B"}, {ID: 1, Name: "A"}}}, "test")

	rec := serve("GET /api/users", h.List, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["data"], 2)
}

func TestUsersHandler_Get(t *testing.T) {
	svc := &fakeUserService{user: &users.User{ID: 4, Name: "Grace"}}
	h := NewUsersHandler(svc, "test")

	rec := serve("GET /api/users/{id}", h.Get, httptest.NewRequest(http.MethodGet, "/api/users/4", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), svc.gotID)
	assert.Equal(t, "Grace", decodeBody(t, rec)["data"].(map[string]any)["name"])
}

func TestUsersHandler_GetInvalidID(t *testing.T) {
	h := NewUsersHandler(&fakeUserService{}, "test")

	rec := serve("GET /api/users/{id}", h.Get, httptest.NewRequest(http.MethodGet, "/api/users/nope", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeBody(t, rec)["errors"].([]any)
	assert.Equal(t, "User ID must be a positive integer", fields[0].(map[string]any)["message"])
}

func TestUsersHandler_GetNotFound(t *testing.T) {
	h := NewUsersHandler(&fakeUserService{err: apperr.NotFound("User not found")}, "test")

	rec := serve("GET /api/users/{id}", h.Get, httptest.NewRequest(http.MethodGet, "/api/users/9", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
