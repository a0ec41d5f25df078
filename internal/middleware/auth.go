package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/logging"
	"github.com/streamhub/backend/internal/models"
	"github.com/streamhub/backend/internal/response"
)

// AccessTokenCookie is the cookie the guard reads before the Authorization header.
const AccessTokenCookie = "accessToken"

type contextKey string

const userKey contextKey = "user"

// Authenticator resolves an access token into the user it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

// Authenticate rejects requests without a valid access token and stores the
// resolved user on the request context.
func Authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := AccessToken(r)
			if token == "" {
				response.Error(ctx, w, apperr.Unauthorized(nil))
				return
			}

			user, err := authn.Authenticate(ctx, token)
			if err != nil {
				response.Error(ctx, w, apperr.Unauthorized(err))
				return
			}

			ctx = WithUser(ctx, user)
			ctx = logging.WithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken extracts the access token from the cookie or the bearer header.
func AccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by Authenticate.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}
