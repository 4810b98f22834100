package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventreg/server/internal/config"
	"github.com/stretchr/testify/assert"
)

func serve(handler http.Handler, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_WriteTierBlocksAfterBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, config.RateLimitConfig{PublicPerMinute: 100, WritePerMinute: 3}, "test")(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(handler, http.MethodPost, "/api/users", "10.0.0.1:1000").Code)
	}

	rec := serve(handler, http.MethodPost, "/api/users", "10.0.0.1:1000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "20", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"success":false`)

	// Reads and other clients have their own buckets.
	assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, "/api/users", "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, serve(handler, http.MethodPost, "/api/users", "10.0.0.2:1000").Code)
}

func TestRateLimit_ExemptPaths(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, config.RateLimitConfig{PublicPerMinute: 1}, "test")(okHandler())

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, "/health", "10.0.0.1:1000").Code)
		assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, "/metrics", "10.0.0.1:1000").Code)
	}
}

func TestRateLimit_ZeroDisablesTier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, config.RateLimitConfig{}, "test")(okHandler())

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, serve(handler, http.MethodPost, "/api/events", "10.0.0.1:1000").Code)
	}
}

func TestClientKey_TrustedProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:4444"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")

	assert.Equal(t, "10.1.2.3", clientKey(req, nil), "untrusted peers cannot spoof")
	assert.Equal(t, "203.0.113.9", clientKey(req, []string{"10.0.0.0/8"}))
}

func TestLimiterStore_Cleanup(t *testing.T) {
	store := newLimiterStore(config.RateLimitConfig{PublicPerMinute: 10})
	store.limiter(TierPublic, "a")
	store.limiters["public:a"].lastSeen = time.Now().Add(-time.Hour)
	store.limiter(TierPublic, "b")

	store.cleanup(time.Now())

	assert.NotContains(t, store.limiters, "public:a")
	assert.Contains(t, store.limiters, "public:b")
}
