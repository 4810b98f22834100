package api

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/eventreg/server/internal/api/handlers"
	"github.com/eventreg/server/internal/api/middleware"
	"github.com/eventreg/server/internal/api/problem"
	"github.com/eventreg/server/internal/config"
	"github.com/eventreg/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Services are the domain dependencies behind the HTTP surface.
type Services struct {
	Events handlers.EventService
	Users  handlers.UserService
	Health handlers.HealthStore
}

// NewRouter builds the full handler chain. ctx bounds background work owned
// by the middleware, such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg config.Config, logger zerolog.Logger, services Services, build BuildInfo) http.Handler {
	env := cfg.Environment
	build = build.withDefaults()

	eventsHandler := handlers.NewEventsHandler(services.Events, env)
	usersHandler := handlers.NewUsersHandler(services.Users, env)
	healthHandler := handlers.NewHealthHandler(services.Health, build.Version)

	mux := http.NewServeMux()
	index := methodMux(env, map[string]http.Handler{
		http.MethodGet: handlers.Index(build.Version, env),
	})
	notFound := handlers.NotFound(env)
	// "/" catches every unmatched path; only the exact root is the index.
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			notFound(w, r)
			return
		}
		index.ServeHTTP(w, r)
	}))
	mux.Handle("/health", methodMux(env, map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(healthHandler.Health),
	}))
	mux.Handle("/version", methodMux(env, map[string]http.Handler{
		http.MethodGet: VersionHandler(build),
	}))
	mux.Handle("/metrics", methodMux(env, map[string]http.Handler{
		http.MethodGet: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}))
	mux.Handle("/api/openapi.json", methodMux(env, map[string]http.Handler{
		http.MethodGet: OpenAPIHandler(env),
	}))

	mux.Handle("/api/events", methodMux(env, map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(eventsHandler.List),
		http.MethodPost: http.HandlerFunc(eventsHandler.Create),
	}))
	mux.Handle("/api/events/upcoming", methodMux(env, map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(eventsHandler.Upcoming),
	}))
	mux.Handle("/api/events/{id}", methodMux(env, map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(eventsHandler.Get),
	}))
	mux.Handle("/api/events/{id}/stats", methodMux(env, map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(eventsHandler.Stats),
	}))
	mux.Handle("/api/events/{id}/register", methodMux(env, map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(eventsHandler.Register),
	}))
	mux.Handle("/api/events/{id}/cancel", methodMux(env, map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(eventsHandler.Cancel),
	}))

	mux.Handle("/api/users", methodMux(env, map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(usersHandler.List),
		http.MethodPost: http.HandlerFunc(usersHandler.Create),
	}))
	mux.Handle("/api/users/{id}", methodMux(env, map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(usersHandler.Get),
	}))

	// Metrics wrap the mux directly so r.Pattern is set by the time the
	// labels are read.
	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.RequestSize(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.RateLimit(ctx, cfg.RateLimit, env)(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = middleware.SecurityHeaders(cfg.IsProduction())(handler)
	handler = middleware.RequestLogging(handler)
	handler = middleware.RequestTimeout(cfg.Server.RequestTimeout)(handler)
	handler = middleware.Tracing(middleware.MuxRoute(mux))(handler)
	handler = middleware.CorrelationID(logger)(handler)
	handler = middleware.Recoverer(env)(handler)
	return handler
}

// methodMux dispatches on method. HEAD falls through to GET; anything else
// unsupported is a JSON 405 with an Allow header.
func methodMux(env string, handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[r.Method]
		if !ok && r.Method == http.MethodHead {
			handler, ok = handlers[http.MethodGet]
		}
		if ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		writeProblem(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil, env)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, message string, err error, env string) {
	problem.WriteStatus(w, r, status, message, err, env, problem.WithPath(r.URL.Path))
}
