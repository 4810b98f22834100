package handlers

import (
	"net/http"

	"github.com/eventreg/server/internal/api/problem"
)

type indexResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

var endpoints = map[string]string{
	"health":         "GET /health",
	"metrics":        "GET /metrics",
	"openapi":        "GET /api/openapi.json",
	"createEvent":    "POST /api/events",
	"listEvents":     "GET /api/events",
	"upcomingEvents": "GET /api/events/upcoming",
	"getEvent":       "GET /api/events/:id",
	"eventStats":     "GET /api/events/:id/stats",
	"register":       "POST /api/events/:id/register",
	"cancel":         "POST /api/events/:id/cancel",
	"createUser":     "POST /api/users",
	"listUsers":      "GET /api/users",
	"getUser":        "GET /api/users/:id",
}

// Index describes the API. It only answers the exact root path; anything
// else reaching it is unknown.
func Index(version, env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			NotFound(env)(w, r)
			return
		}
		writeJSON(w, http.StatusOK, indexResponse{
			Success:   true,
			Message:   "Event Management API",
			Version:   version,
			Endpoints: endpoints,
		})
	}
}

func NotFound(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problem.WriteStatus(w, r, http.StatusNotFound, "Resource not found", nil, env, problem.WithPath(r.URL.Path))
	}
}
