package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Idempotent(t *testing.T) {
	require.NotPanics(t, func() {
		Init("v1.0.0", "abc123", "2026-01-30")
		Init("v1.0.0", "abc123", "2026-01-30")
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(AppInfo.WithLabelValues("v1.0.0", "abc123", "2026-01-30")))
}

func TestHTTPMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("OK"))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/users/{id}", "201"))

	rec := httptest.NewRecorder()
	HTTPMiddleware(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/12", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/users/{id}", "201"))
	assert.Equal(t, before+1, after)
	assert.Zero(t, testutil.ToFloat64(HTTPRequestsInFlight))
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			})

			rec := httptest.NewRecorder()
			HTTPMiddleware(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
			assert.Equal(t, code, rec.Code)
		})
	}
}

func TestDBCollector_NilPool(t *testing.T) {
	collector := NewDBCollector(nil)

	require.NotPanics(t, func() {
		collector.collect()
		collector.Stop()
		collector.Stop()
	})
}

func TestDBCollector_StopsOnContext(t *testing.T) {
	collector := NewDBCollector(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		collector.Start(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after context cancel")
	}
}

func TestRecordQuery(t *testing.T) {
	RecordQuery("test_select", time.Now(), nil)
	RecordQuery("test_select", time.Now(), pgx.ErrNoRows)
	assert.Zero(t, testutil.ToFloat64(DBErrors.WithLabelValues("test_select", "query_error")))

	RecordQuery("test_failed", time.Now(), context.Canceled)
	assert.Equal(t, float64(1), testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled")))
}

func TestClassifyDBError(t *testing.T) {
	assert.Equal(t, "timeout", classifyDBError(context.DeadlineExceeded))
	assert.Equal(t, "constraint", classifyDBError(&pgconn.PgError{Code: "23505"}))
	assert.Equal(t, "server", classifyDBError(&pgconn.PgError{Code: "40001"}))
	assert.Equal(t, "query_error", classifyDBError(errors.New("boom")))
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}

	content := []byte("Hello, World!")
	_, _ = rw.Write(content)

	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.Equal(t, len(content), rw.bytesWritten)
}
