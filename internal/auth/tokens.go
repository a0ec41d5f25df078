package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/streamhub/backend/internal/models"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken covers every reason a presented token is rejected: bad
// signature, expiry, malformed payload or a token of the wrong type.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	UserID    string `json:"_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It only identifies the user.
type RefreshClaims struct {
	UserID    string `json:"_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenConfig holds the secrets and lifetimes used by a TokenIssuer.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. Access and refresh tokens use distinct secrets.
func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		panic("auth: token secrets must not be empty")
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// IssueAccessToken signs an access token embedding the user's public identity.
func (t *TokenIssuer) IssueAccessToken(user models.User) (string, time.Time, error) {
	now := t.now().UTC()
	expires := now.Add(t.cfg.AccessTTL)
	claims := AccessClaims{
		UserID:           user.ID,
		Username:         user.Username,
		Email:            user.Email,
		FullName:         user.FullName,
		TokenType:        tokenTypeAccess,
		RegisteredClaims: registeredClaims(user.ID, now, expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.AccessSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// IssueRefreshToken signs a refresh token embedding only the user id.
func (t *TokenIssuer) IssueRefreshToken(userID string) (string, time.Time, error) {
	now := t.now().UTC()
	expires := now.Add(t.cfg.RefreshTTL)
	claims := RefreshClaims{
		UserID:           userID,
		TokenType:        tokenTypeRefresh,
		RegisteredClaims: registeredClaims(userID, now, expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.RefreshSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expires, nil
}

// ParseAccess verifies an access token and returns its claims.
func (t *TokenIssuer) ParseAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.parse(token, t.cfg.AccessSecret, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (t *TokenIssuer) ParseRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := t.parse(token, t.cfg.RefreshSecret, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) parse(token, secret string, claims jwt.Claims) error {
	if token == "" {
		return ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

func registeredClaims(subject string, now, expires time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
}
