package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"static path", "/api/events", "/api/events"},
		{"single id", "/api/events/42", "/api/events/{id}"},
		{"two ids", "/api/events/42/register/7", "/api/events/{id}/register/{id}"},
		{"non numeric segment", "/api/events/upcoming", "/api/events/upcoming"},
		{"empty path", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePath(tt.input))
		})
	}
}

func TestRouteLabel_PrefersMuxPattern(t *testing.T) {
	var label string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		label = routeLabel(r)
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/events/9/stats", nil))
	assert.Equal(t, "/api/events/{id}/stats", label)
}
