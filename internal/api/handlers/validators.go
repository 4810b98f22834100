package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/eventreg/server/internal/api/problem"
	"github.com/eventreg/server/internal/domain/apperr"
	"github.com/eventreg/server/internal/validation"
)

const (
	msgEventIDInvalid = "Event ID must be a positive integer"
	msgUserIDInvalid  = "User ID must be a positive integer"
	msgUserIDRequired = "User ID is required"
	msgInvalidJSON    = "Invalid JSON payload"
	msgBodyTooLarge   = "Request body too large"
)

// pathID parses the {id} path value. On failure it writes a 400 and returns
// false.
func pathID(w http.ResponseWriter, r *http.Request, message, env string) (int64, bool) {
	raw := r.PathValue("id")
	id, ok := validation.ParseID(raw)
	if !ok {
		problem.Write(w, r, apperr.Validation("Validation failed",
			apperr.FieldError{Field: "id", Message: message, Value: raw}), env)
		return 0, false
	}
	return id, true
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched
// so field validation can report what is missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, env string) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxErr):
		problem.WriteStatus(w, r, http.StatusRequestEntityTooLarge, msgBodyTooLarge, err, env)
	case errors.As(err, &typeErr) && typeErr.Field != "":
		problem.Write(w, r, apperr.Validation("Validation failed", apperr.FieldError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type),
		}), env)
	default:
		problem.WriteStatus(w, r, http.StatusBadRequest, msgInvalidJSON, err, env)
	}
	return false
}

// userIDBody is the payload of register and cancel. The id may arrive as a
// JSON number, an integral float or a numeric string.
type userIDBody struct {
	UserID validation.FlexInt `json:"user_id"`
}

func (b userIDBody) parse() (int64, *apperr.Error) {
	if !b.UserID.Present() {
		return 0, apperr.Validation("Validation failed", apperr.FieldError{Field: "user_id", Message: msgUserIDRequired})
	}

	id, ok := b.UserID.Int()
	if !ok || id < 1 {
		return 0, apperr.Validation("Validation failed", apperr.FieldError{Field: "user_id", Message: msgUserIDInvalid, Value: b.UserID.String()})
	}
	return id, nil
}
