// Package apperr defines the tagged error type shared by the domain services
// and the HTTP layer.
//
// Business-rule failures are raised where they are detected with a Kind, a
// stable client-facing Message and optional structured Details. Anything that
// is not an *Error is treated as a storage failure.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation   Kind = "ValidationFailed"
	KindNotFound     Kind = "NotFound"
	KindInvalidState Kind = "InvalidState"
	KindConflict     Kind = "Conflict"
	KindStorage      Kind = "StorageError"
)

// HTTPStatus maps a kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Error is a classified failure carrying a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func InvalidState(message string, details map[string]any) *Error {
	return &Error{Kind: KindInvalidState, Message: message, Details: details}
}

func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Storage wraps an infrastructure failure. The message is what clients see;
// err is only exposed in development.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf reports the kind of err. Unclassified errors are storage errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindStorage
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
