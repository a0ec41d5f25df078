package auth

import (
	"context"
	"errors"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/logging"
	"github.com/streamhub/backend/internal/models"
)

var (
	// ErrUserNotFound indicates the token subject no longer maps to a stored user.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenReused indicates a refresh token that is no longer the user's current one.
	ErrTokenReused = errors.New("refresh token superseded")
)

// SessionStore persists the single active refresh token of each user.
type SessionStore interface {
	FindByID(ctx context.Context, userID string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, refreshToken string) error
	// SwapRefreshToken replaces current with next only if current is still the
	// stored value, reporting whether the swap happened.
	SwapRefreshToken(ctx context.Context, userID, current, next string) (bool, error)
}

// Manager manages the lifecycle of issued session tokens. Each user holds at
// most one valid refresh token; issuing a new one overwrites the previous.
type Manager struct {
	tokens *TokenIssuer
	store  SessionStore
}

// NewManager constructs a Manager that signs with tokens and persists through store.
func NewManager(tokens *TokenIssuer, store SessionStore) *Manager {
	if tokens == nil || store == nil {
		panic("auth: token issuer and session store must not be nil")
	}
	return &Manager{tokens: tokens, store: store}
}

// IssuePair creates a new pair of access and refresh tokens for the provided
// user and stores the refresh token as the user's current one.
func (m *Manager) IssuePair(ctx context.Context, userID string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.issue_pair")
	defer span.End()

	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.SessionTokens{}, apperr.NotFound("User not found")
		}
		return models.SessionTokens{}, m.internal(ctx, err, userID)
	}

	tokens, err := m.sign(user)
	if err != nil {
		return models.SessionTokens{}, m.internal(ctx, err, userID)
	}

	if err := m.store.SetRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return models.SessionTokens{}, m.internal(ctx, err, userID)
	}

	return tokens, nil
}

// Rotate exchanges the user's current refresh token for a new pair. A token
// that was already rotated away (or revoked) is rejected, and the
// compare-and-replace happens in a single conditional store update so two
// concurrent refreshes with the same token cannot both succeed.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.rotate")
	defer span.End()

	claims, err := m.tokens.ParseRefresh(refreshToken)
	if err != nil {
		span.RecordError(err)
		return models.SessionTokens{}, apperr.Unauthorized(err)
	}

	user, err := m.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			span.RecordError(err)
			return models.SessionTokens{}, apperr.NotFound("User not found")
		}
		return models.SessionTokens{}, m.internal(ctx, err, claims.UserID)
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		logging.FromContext(ctx).Warn("refresh token reuse detected", "userId", user.ID)
		span.RecordError(ErrTokenReused)
		return models.SessionTokens{}, apperr.Unauthorized(ErrTokenReused)
	}

	tokens, err := m.sign(user)
	if err != nil {
		return models.SessionTokens{}, m.internal(ctx, err, user.ID)
	}

	swapped, err := m.store.SwapRefreshToken(ctx, user.ID, refreshToken, tokens.RefreshToken)
	if err != nil {
		return models.SessionTokens{}, m.internal(ctx, err, user.ID)
	}
	if !swapped {
		logging.FromContext(ctx).Warn("concurrent refresh lost the swap", "userId", user.ID)
		span.RecordError(ErrTokenReused)
		return models.SessionTokens{}, apperr.Unauthorized(ErrTokenReused)
	}

	return tokens, nil
}

// Revoke clears the user's stored refresh token.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.store.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperr.NotFound("User not found")
		}
		return m.internal(ctx, err, userID)
	}
	return nil
}

// Authenticate resolves an access token into the stored user, without
// credential fields. Every failure is reported as Unauthorized.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	claims, err := m.tokens.ParseAccess(accessToken)
	if err != nil {
		return models.User{}, apperr.Unauthorized(err)
	}

	user, err := m.store.FindByID(ctx, claims.UserID)
	if err != nil {
		return models.User{}, apperr.Unauthorized(err)
	}

	return user.Sanitized(), nil
}

func (m *Manager) sign(user models.User) (models.SessionTokens, error) {
	access, accessExpires, err := m.tokens.IssueAccessToken(user)
	if err != nil {
		return models.SessionTokens{}, err
	}
	refresh, refreshExpires, err := m.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return models.SessionTokens{}, err
	}
	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (m *Manager) internal(ctx context.Context, err error, userID string) error {
	logging.FromContext(ctx).Error("session token operation failed", "error", err, "userId", userID)
	return apperr.Internal("Something went wrong while generating tokens", err)
}
