// Package problem writes the JSON error envelope returned by every endpoint:
//
//	{"success": false, "message": "...", "errors": [...], "details": {...}}
//
// The internal cause is only included in development and test environments.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eventreg/server/internal/domain/apperr"
	"github.com/rs/zerolog"
)

const contentType = "application/json; charset=utf-8"

const msgInternal = "Internal server error"

type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
	Details map[string]any      `json:"details,omitempty"`
	Error   string              `json:"error,omitempty"`
	Path    string              `json:"path,omitempty"`
}

type Option func(*Envelope)

func WithFields(fields ...apperr.FieldError) Option {
	return func(e *Envelope) {
		e.Errors = append(e.Errors, fields...)
	}
}

func WithDetails(details map[string]any) Option {
	return func(e *Envelope) {
		e.Details = details
	}
}

// WithPath echoes the request path, used for unknown routes.
func WithPath(path string) Option {
	return func(e *Envelope) {
		e.Path = path
	}
}

// Write maps err onto a status and envelope. *apperr.Error values keep their
// message, field errors and details; anything else becomes a 500.
func Write(w http.ResponseWriter, r *http.Request, err error, env string) {
	appErr, ok := apperr.As(err)
	if !ok {
		WriteStatus(w, r, http.StatusInternalServerError, msgInternal, err, env)
		return
	}

	message := appErr.Message
	if message == "" {
		message = msgInternal
	}
	WriteStatus(w, r, appErr.Kind.HTTPStatus(), message, err, env,
		WithFields(appErr.Fields...),
		WithDetails(appErr.Details),
	)
}

// WriteStatus writes an envelope with an explicit status. err is logged, and
// exposed to the client only in development.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, message string, err error, env string, opts ...Option) {
	envelope := Envelope{Success: false, Message: message}
	for _, opt := range opts {
		opt(&envelope)
	}

	if err != nil && (env == "development" || env == "test") {
		envelope.Error = causeOf(err)
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		var event *zerolog.Event
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		} else {
			event = logger.Warn()
		}
		event.Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(message)
	}

	writeEnvelope(w, status, envelope)
}

// causeOf prefers the wrapped infrastructure error over the client message.
func causeOf(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Err != nil {
		return appErr.Err.Error()
	}
	return err.Error()
}

func writeEnvelope(w http.ResponseWriter, status int, envelope Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"` + msgInternal + `"}`))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
