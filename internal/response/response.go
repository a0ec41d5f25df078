// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/logging"
)

// Envelope is the body of every response. Success is true for status codes below 400.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// JSON writes data wrapped in an envelope.
func JSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	write(ctx, w, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// Error converts err into an error envelope. Unclassified errors become a
// generic 500 and their cause is only logged.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	status := appErr.StatusCode()

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	default:
		logger.Warn("request returned client error", slog.Int("status", status), slog.Any("error", err))
	}

	write(ctx, w, Envelope{
		StatusCode: status,
		Data:       nil,
		Message:    appErr.Message,
		Success:    false,
	})
}

func write(ctx context.Context, w http.ResponseWriter, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.StatusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx).Error("encode response body", slog.Int("status", body.StatusCode), slog.Any("error", err))
	}
}
