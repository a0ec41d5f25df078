package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/response"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	if h.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(pingCtx); err != nil {
			return &apperr.Error{Kind: apperr.KindUnavailable, Message: "Database unavailable", Err: err}
		}
	}

	response.JSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"}, "Healthy")
	return nil
}
