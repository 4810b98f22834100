package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHealthHandler(store HealthStore) *HealthHandler {
	h := NewHealthHandler(store, "1.2.3")
	h.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	return h
}

func TestHealth_Healthy(t *testing.T) {
	h := newTestHealthHandler(fakeHealthStore{version: 1, applied: true})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Server is running", body["message"])
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "2030-01-01T00:00:00Z", body["timestamp"])

	checks := body["checks"].(map[string]any)
	assert.Equal(t, "pass", checks["database"].(map[string]any)["status"])
	assert.Equal(t, "pass", checks["migrations"].(map[string]any)["status"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := newTestHealthHandler(fakeHealthStore{pingErr: errors.New("connection refused"), migErr: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHealth_DirtyMigrationIsDegraded(t *testing.T) {
	h := newTestHealthHandler(fakeHealthStore{version: 1, dirty: true, applied: true})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
}

func TestHealth_NilStore(t *testing.T) {
	h := newTestHealthHandler(nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_ShuttingDown(t *testing.T) {
	h := newTestHealthHandler(fakeHealthStore{applied: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting_down", decodeBody(t, rec)["status"])
}
