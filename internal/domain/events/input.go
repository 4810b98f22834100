package events

import (
	"time"

	"github.com/eventreg/server/internal/domain/apperr"
	"github.com/eventreg/server/internal/sanitize"
	"github.com/eventreg/server/internal/validation"
)

// CreateInput is the payload accepted when creating an event.
type CreateInput struct {
	Title    string             `json:"title" validate:"required,min=3,max=255"`
	DateTime string             `json:"date_time" validate:"required"`
	Location string             `json:"location" validate:"required,min=2,max=255"`
	Capacity validation.FlexInt `json:"capacity" validate:"-"`
}

var createMessages = validation.Messages{
	"title.required":     "Title is required",
	"title":              "Title must be between 3 and 255 characters",
	"date_time.required": "Date and time is required",
	"location.required":  "Location is required",
	"location":           "Location must be between 2 and 255 characters",
}

const (
	minCapacity = 1
	maxCapacity = 1000

	msgCapacityRequired = "Capacity is required"
	msgCapacityRange    = "Capacity must be a positive integer between 1 and 1000"

	msgDateFormat = "Date must be in ISO 8601 format (e.g., 2025-12-31T10:00:00Z)"
	msgDateFuture = "Event date must be in the future"
)

// validate sanitizes the text fields and checks every rule, reporting all
// failing fields at once.
func (in CreateInput) validate(now time.Time) (CreateParams, error) {
	in.Title = sanitize.Text(in.Title)
	in.Location = sanitize.Text(in.Location)

	fields := validation.Struct(in, createMessages)

	capacity, ok := in.Capacity.Int()
	switch {
	case !in.Capacity.Present():
		fields = append(fields, apperr.FieldError{Field: "capacity", Message: msgCapacityRequired})
	case !ok || capacity < minCapacity || capacity > maxCapacity:
		fields = append(fields, apperr.FieldError{Field: "capacity", Message: msgCapacityRange, Value: in.Capacity.String()})
	}

	var when time.Time
	if in.DateTime != "" {
		parsed, err := validation.ParseTimestamp(in.DateTime)
		switch {
		case err != nil:
			fields = append(fields, apperr.FieldError{Field: "date_time", Message: msgDateFormat, Value: in.DateTime})
		case !parsed.After(now):
			fields = append(fields, apperr.FieldError{Field: "date_time", Message: msgDateFuture, Value: in.DateTime})
		default:
			when = parsed
		}
	}

	if len(fields) > 0 {
		return CreateParams{}, apperr.Validation("Validation failed", fields...)
	}

	return CreateParams{
		Title:    in.Title,
		DateTime: when,
		Location: in.Location,
		Capacity: int(capacity),
	}, nil
}
