package middleware

import (
	"net/http"
)

// DefaultMaxBodySize is 1MB
const DefaultMaxBodySize int64 = 1 << 20

// RequestSize wraps the body in http.MaxBytesReader. Handlers see a
// *http.MaxBytesError from the decoder and answer 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
