package middleware

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/eventreg/server/internal/api"

// RouteFunc resolves the route pattern a request will be dispatched to, or
// "" when nothing matches.
type RouteFunc func(*http.Request) string

// MuxRoute adapts a ServeMux into a RouteFunc, dropping the method prefix
// from patterns such as "GET /api/events/{id}".
func MuxRoute(mux *http.ServeMux) RouteFunc {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		if _, path, ok := strings.Cut(pattern, " "); ok {
			return path
		}
		return pattern
	}
}

// Tracing starts a server span per request, continuing any W3C trace context
// sent by the client. Spans are named by route pattern so ids in the path do
// not explode span cardinality.
func Tracing(route RouteFunc) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			pattern := ""
			if route != nil {
				pattern = route(r)
			}
			spanName := r.Method
			if pattern != "" {
				spanName += " " + pattern
			}

			attrs := []attribute.KeyValue{
				semconv.HTTPMethod(r.Method),
				semconv.HTTPURL(r.URL.String()),
				semconv.HTTPScheme(schemeFromRequest(r)),
				semconv.NetHostName(r.Host),
				attribute.String("http.user_agent", r.UserAgent()),
			}
			if pattern != "" {
				attrs = append(attrs, semconv.HTTPRoute(pattern))
			}
			if requestID := GetRequestID(ctx); requestID != "" {
				attrs = append(attrs, attribute.String("request_id", requestID))
			}

			ctx, span := tracer.Start(ctx, spanName,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			ww := &tracingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r.WithContext(ctx))

			span.SetAttributes(semconv.HTTPStatusCode(ww.statusCode))
			if ww.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(ww.statusCode))
			}
		})
	}
}

type tracingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *tracingResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func schemeFromRequest(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
