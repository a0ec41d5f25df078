package repositories

import (
	"context"
	"errors"

	"github.com/streamhub/backend/internal/auth"
	"github.com/streamhub/backend/internal/models"
)

// UserSessionStore keeps refresh tokens in the users table through a
// user repository, reporting missing users with auth.ErrUserNotFound.
type UserSessionStore struct {
	users UserRepository
}

// NewUserSessionStore constructs a session store backed by the provided user repository.
func NewUserSessionStore(users UserRepository) *UserSessionStore {
	return &UserSessionStore{users: users}
}

// FindByID loads the user that owns the session slot.
func (s *UserSessionStore) FindByID(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, auth.ErrUserNotFound
	}
	return user, err
}

// SetRefreshToken overwrites the stored refresh token of the user.
func (s *UserSessionStore) SetRefreshToken(ctx context.Context, userID, refreshToken string) error {
	err := s.users.SetRefreshToken(ctx, userID, refreshToken)
	if errors.Is(err, ErrNotFound) {
		return auth.ErrUserNotFound
	}
	return err
}

// SwapRefreshToken atomically replaces current with next.
func (s *UserSessionStore) SwapRefreshToken(ctx context.Context, userID, current, next string) (bool, error) {
	return s.users.SwapRefreshToken(ctx, userID, current, next)
}

var _ auth.SessionStore = (*UserSessionStore)(nil)
