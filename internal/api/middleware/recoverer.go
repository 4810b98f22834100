package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/eventreg/server/internal/api/problem"
)

// Recoverer turns a handler panic into a 500 envelope instead of dropping the
// connection. http.ErrAbortHandler is re-raised so the server can abort.
func Recoverer(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
				problem.WriteStatus(w, r, http.StatusInternalServerError, "Internal server error", err, env)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
