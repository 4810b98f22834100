package users

import (
	"context"
	"errors"

	"github.com/eventreg/server/internal/domain/apperr"
	"github.com/eventreg/server/internal/sanitize"
	"github.com/eventreg/server/internal/validation"
	"github.com/rs/zerolog"
)

const (
	msgUserNotFound = "User not found"
	msgEmailTaken   = "User with this email already exists"
)

// CreateInput is the payload accepted when creating a user.
type CreateInput struct {
	Name  string `json:"name" validate:"required,min=2,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

var createMessages = validation.Messages{
	"name.required":  "Name is required",
	"name":           "Name must be between 2 and 255 characters",
	"email.required": "Email is required",
	"email":          "Invalid email format",
}

// Service handles user operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// Create validates input and inserts a user. Duplicate emails are a Conflict
// whether caught by the pre-check or by the unique index.
func (s *Service) Create(ctx context.Context, input CreateInput) (*User, error) {
	input.Name = sanitize.Text(input.Name)
	input.Email = sanitize.Email(input.Email)
	if fields := validation.Struct(input, createMessages); fields != nil {
		return nil, apperr.Validation("Validation failed", fields...)
	}

	existing, err := s.repo.GetByEmail(ctx, input.Email)
	if err == nil && existing != nil {
		return nil, apperr.Conflict(msgEmailTaken)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, apperr.Storage("Failed to create user", err)
	}

	user, err := s.repo.Create(ctx, CreateParams{Name: input.Name, Email: input.Email})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Conflict(msgEmailTaken)
		}
		return nil, apperr.Storage("Failed to create user", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user created")
	return user, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound(msgUserNotFound)
		}
		return nil, apperr.Storage("Failed to retrieve user", err)
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve users", err)
	}
	return items, nil
}
