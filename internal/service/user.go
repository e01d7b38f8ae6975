package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
)

// UserService covers profile reads and edits; account lifecycle lives
// in AuthService.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// Get resolves a user by ID, username or email.
func (s *UserService) Get(ctx context.Context, ref string) (*model.User, error) {
	if ref == "" {
		return nil, fmt.Errorf("service/user: %w", apperror.ValidationFailed("user", "user reference is required"))
	}
	user, err := s.users.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("service/user: resolving %q: %w", ref, err)
	}
	return user, nil
}

// List returns users matching opts. An empty filter lists everyone.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	users, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing: %w", err)
	}
	return users, nil
}

// UpdateProfile changes the caller's own display name and email.
// Username, provider link and activation state are not editable here.
func (s *UserService) UpdateProfile(ctx context.Context, userID, name, email string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching %s: %w", userID, err)
	}

	if name != "" {
		user.Name = name
	}
	if email != "" && email != user.Email {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return nil, fmt.Errorf("service/user: %w", apperror.Conflict("user", email))
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/user: checking email: %w", err)
		}
		user.Email = email
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating %s: %w", userID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return user, nil
}
