// Package validation wraps go-playground/validator for request payloads and
// converts its failures into apperr field errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/eventreg/server/internal/domain/apperr"
	"github.com/go-playground/validator/v10"
)

// Messages maps "<json field>.<tag>" (or just "<json field>") to the message
// returned to clients.
type Messages map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates input and returns one FieldError per failed field.
// A nil slice means the input is valid.
func Struct(input any, messages Messages) []apperr.FieldError {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperr.FieldError{{Message: err.Error()}}
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		msg := messages[field+"."+fe.Tag()]
		if msg == "" {
			msg = messages[field]
		}
		if msg == "" {
			msg = fmt.Sprintf("%s failed %s validation", field, fe.Tag())
		}
		fields = append(fields, apperr.FieldError{Field: field, Message: msg, Value: fe.Value()})
	}
	return fields
}

// Fractional seconds are accepted by time.Parse after any seconds field, so
// the layouts only list separators, precision and offset styles.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts ISO 8601 timestamps. Values without an offset are
// read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 timestamp %q", value)
}

// ParseID parses a positive integer identifier.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
