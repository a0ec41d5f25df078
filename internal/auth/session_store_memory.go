package auth

import (
	"context"
	"sync"

	"github.com/streamhub/backend/internal/models"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map of users.
func NewInMemorySessionStore(users ...models.User) *InMemorySessionStore {
	s := &InMemorySessionStore{users: make(map[string]models.User, len(users))}
	for _, user := range users {
		s.users[user.ID] = user
	}
	return s
}

// InMemorySessionStore implements SessionStore for tests and local development.
type InMemorySessionStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Put inserts or replaces a user record.
func (s *InMemorySessionStore) Put(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// FindByID retrieves a user by id.
func (s *InMemorySessionStore) FindByID(_ context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	user, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

// SetRefreshToken overwrites the stored refresh token.
func (s *InMemorySessionStore) SetRefreshToken(_ context.Context, userID, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.RefreshToken = refreshToken
	s.users[userID] = user
	return nil
}

// SwapRefreshToken replaces current with next when current is still stored.
func (s *InMemorySessionStore) SwapRefreshToken(_ context.Context, userID, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	if current == "" || user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = next
	s.users[userID] = user
	return true, nil
}

// RefreshToken reports the stored refresh token for a user. Useful for tests.
func (s *InMemorySessionStore) RefreshToken(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID].RefreshToken
}
