package handlers

import (
	"net/http"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/middleware"
	"github.com/streamhub/backend/internal/models"
	"github.com/streamhub/backend/internal/response"
)

// HandlerFunc is an http handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to net/http. Any returned error is written as an error envelope.
func Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			response.Error(r.Context(), w, err)
		}
	}
}

func currentUser(r *http.Request) (models.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok || user.ID == "" {
		return models.User{}, apperr.Unauthorized(nil)
	}
	return user, nil
}
