package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/streamhub/backend/internal/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(context.Background(), rec, http.StatusCreated, map[string]string{"username": "alice"}, "User registered successfully")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	body := decode(t, rec)
	if body["statusCode"] != float64(http.StatusCreated) || body["success"] != true {
		t.Fatalf("unexpected envelope: %v", body)
	}
	if body["message"] != "User registered successfully" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["username"] != "alice" {
		t.Fatalf("unexpected data: %v", body["data"])
	}
}

func TestErrorEnvelope(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"classified", apperr.Conflict("User with email or username already exists"), http.StatusConflict, "User with email or username already exists"},
		{"unauthorized", apperr.Unauthorized(errors.New("token is expired")), http.StatusUnauthorized, "Unauthorized"},
		{"unclassified", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "Something went wrong"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(context.Background(), rec, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
			body := decode(t, rec)
			if body["success"] != false || body["data"] != nil {
				t.Fatalf("unexpected envelope: %v", body)
			}
			if body["message"] != tc.message {
				t.Fatalf("expected message %q got %v", tc.message, body["message"])
			}
			if body["statusCode"] != float64(tc.status) {
				t.Fatalf("unexpected statusCode %v", body["statusCode"])
			}
		})
	}
}
