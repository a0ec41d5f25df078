package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/streamhub/backend/internal/auth"
	"github.com/streamhub/backend/internal/middleware"
	"github.com/streamhub/backend/internal/models"
	"github.com/streamhub/backend/internal/profiles"
	"github.com/streamhub/backend/internal/repositories"
	"github.com/streamhub/backend/internal/storage"
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

// stubUploader fails for files spooled with a ".fail" extension.
type stubUploader struct {
	uploads int
}

func (u *stubUploader) Upload(_ context.Context, localPath string) (string, error) {
	defer os.Remove(localPath)
	if strings.HasSuffix(localPath, ".fail") {
		return "", errors.New("asset host unavailable")
	}
	u.uploads++
	return "https://cdn.example.com/" + filepath.Base(localPath), nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	router   http.Handler
	store    *repositories.MemoryStore
	hasher   auth.Hasher
	uploader *stubUploader
}

func newTestEnv(t *testing.T, opts ...func(*Dependencies)) testEnv {
	t.Helper()
	store := repositories.NewMemoryStore()
	users := store.Users()
	issuer := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Hour,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    24 * time.Hour,
	})
	hasher := auth.NewHasher(bcrypt.MinCost)
	uploader := &stubUploader{}

	deps := Dependencies{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Users:          users,
		Sessions:       auth.NewManager(issuer, repositories.NewUserSessionStore(users)),
		Hasher:         hasher,
		Spool:          storage.NewSpool(t.TempDir(), 1<<20),
		Uploader:       uploader,
		Channels:       profiles.NewAggregator(users, store.Subscriptions(), store.Videos()),
		Cookies:        CookieConfig{Secure: true, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
		MaxUploadBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router := NewRouter(deps)

	return testEnv{router: router, store: store, hasher: hasher, uploader: uploader}
}

func (e testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var body envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope (status %d): %v: %s", rec.Code, err, rec.Body.String())
	}
	if body.StatusCode != rec.Code {
		t.Fatalf("envelope status %d does not match response status %d", body.StatusCode, rec.Code)
	}
	return rec, body
}

func multipartRequest(t *testing.T, method, path string, fields, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, filename := range files {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("image-bytes")); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func registerFields(username, email string) map[string]string {
	return map[string]string{
		"username": username,
		"email":    email,
		"password": "pw123",
		"fullName": strings.ToUpper(username[:1]) + username[1:] + " A",
	}
}

func (e testEnv) register(t *testing.T, username, email string) models.User {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", registerFields(username, email), map[string]string{"avatar": "me.png"})
	rec, body := e.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201 got %d (%s)", username, rec.Code, body.Message)
	}
	var user models.User
	if err := json.Unmarshal(body.Data, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return user
}

func (e testEnv) login(t *testing.T, username string) (sessionResponse, []*http.Cookie) {
	t.Helper()
	rec, body := e.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{"username": username, "password": "pw123"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200 got %d (%s)", username, rec.Code, body.Message)
	}
	var session sessionResponse
	if err := json.Unmarshal(body.Data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session, rec.Result().Cookies()
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterLoginRefreshScenario(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register",
		registerFields("Alice", " Alice@X.com "), map[string]string{"avatar": "me.png"})
	rec, body := env.do(t, req)
	if rec.Code != http.StatusCreated || !body.Success {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, body.Message)
	}
	for _, secret := range []string{"password", "refreshToken", "pw123"} {
		if strings.Contains(string(body.Data), secret) {
			t.Fatalf("registered user leaked %q: %s", secret, body.Data)
		}
	}

	var registered models.User
	if err := json.Unmarshal(body.Data, &registered); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if registered.Username != "alice" || registered.Email != "alice@x.com" || registered.AvatarURL == "" {
		t.Fatalf("unexpected registered user: %+v", registered)
	}

	stored, err := env.store.Users().FindByID(context.Background(), registered.ID)
	if err != nil {
		t.Fatalf("load stored user: %v", err)
	}
	if stored.PasswordHash == "pw123" || !env.hasher.Verify("pw123", stored.PasswordHash) {
		t.Fatal("expected stored password to be a verifiable hash")
	}

	session, cookies := env.login(t, "alice")
	if session.AccessToken == "" || session.RefreshToken == "" || session.User == nil {
		t.Fatalf("expected tokens and user in login body, got %+v", session)
	}
	access := findCookie(cookies, "accessToken")
	refresh := findCookie(cookies, RefreshTokenCookie)
	if access == nil || refresh == nil {
		t.Fatalf("expected both session cookies, got %v", cookies)
	}
	if !access.HttpOnly || !access.Secure || !refresh.HttpOnly || !refresh.Secure {
		t.Fatal("expected session cookies to be http-only and secure")
	}
	if refresh.Value != session.RefreshToken {
		t.Fatal("expected refresh cookie to carry the issued refresh token")
	}

	rec, body = env.do(t, withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("current user: expected 200 got %d", rec.Code)
	}
	var current models.User
	if err := json.Unmarshal(body.Data, &current); err != nil {
		t.Fatalf("decode current user: %v", err)
	}
	if current.ID != registered.ID {
		t.Fatalf("expected current user %s got %s", registered.ID, current.ID)
	}

	refreshReq := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	refreshReq.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: session.RefreshToken})
	rec, body = env.do(t, refreshReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200 got %d (%s)", rec.Code, body.Message)
	}
	var rotated sessionResponse
	if err := json.Unmarshal(body.Data, &rotated); err != nil {
		t.Fatalf("decode rotated session: %v", err)
	}
	if rotated.RefreshToken == "" || rotated.RefreshToken == session.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	replay.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: session.RefreshToken})
	rec, body = env.do(t, replay)
	if rec.Code != http.StatusUnauthorized || body.Message != "Unauthorized" {
		t.Fatalf("replayed refresh: expected 401 got %d (%s)", rec.Code, body.Message)
	}

	rec, _ = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": rotated.RefreshToken}))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh from body: expected 200 got %d", rec.Code)
	}
}

func TestRegisterFailures(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		files  map[string]string
		status int
	}{
		{
			name:   "missing field",
			fields: map[string]string{"username": "bob", "email": "bob@x.com", "password": "pw123", "fullName": " "},
			files:  map[string]string{"avatar": "me.png"},
			status: http.StatusBadRequest,
		},
		{
			name:   "duplicate username",
			fields: registerFields("alice", "other@x.com"),
			files:  map[string]string{"avatar": "me.png"},
			status: http.StatusConflict,
		},
		{
			name:   "duplicate email",
			fields: registerFields("other", "ALICE@x.com"),
			files:  map[string]string{"avatar": "me.png"},
			status: http.StatusConflict,
		},
		{
			name:   "missing avatar",
			fields: registerFields("bob", "bob@x.com"),
			status: http.StatusBadRequest,
		},
		{
			name:   "avatar upload fails",
			fields: registerFields("bob", "bob@x.com"),
			files:  map[string]string{"avatar": "me.fail"},
			status: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.register(t, "alice", "alice@x.com")

			rec, body := env.do(t, multipartRequest(t, http.MethodPost, "/api/v1/users/register", tc.fields, tc.files))
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d (%s)", tc.status, rec.Code, body.Message)
			}
			if body.Success || string(body.Data) != "null" {
				t.Fatalf("expected error envelope, got %+v", body)
			}
		})
	}
}

func TestRegisterToleratesCoverImageFailure(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", registerFields("bob", "bob@x.com"),
		map[string]string{"avatar": "me.png", "coverImage": "cover.fail"})
	rec, body := env.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, body.Message)
	}

	var user models.User
	if err := json.Unmarshal(body.Data, &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.CoverImageURL != "" || user.AvatarURL == "" {
		t.Fatalf("expected avatar only, got %+v", user)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com")

	cases := []struct {
		name    string
		payload map[string]string
		status  int
	}{
		{"missing identifiers", map[string]string{"password": "pw123"}, http.StatusBadRequest},
		{"unknown user", map[string]string{"username": "nobody", "password": "pw123"}, http.StatusNotFound},
		{"wrong password", map[string]string{"username": "alice", "password": "nope"}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/login", tc.payload))
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Fatal("failed login must not set cookies")
			}
		})
	}

	stored, err := env.store.Users().FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("load alice: %v", err)
	}
	if stored.RefreshToken != "" {
		t.Fatal("failed logins must not issue tokens")
	}
}

func TestLoginAcceptsFormAndEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader("email=ALICE%40x.com&password=pw123"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec, body := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, body.Message)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com")
	session, _ := env.login(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: session.AccessToken})
	rec, _ := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200 got %d", rec.Code)
	}
	for _, name := range []string{"accessToken", RefreshTokenCookie} {
		c := findCookie(rec.Result().Cookies(), name)
		if c == nil || c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("expected %s cookie to be cleared, got %+v", name, c)
		}
	}

	rec, _ = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": session.RefreshToken}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401 got %d", rec.Code)
	}
}

func TestGuardedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/users/logout"},
		{http.MethodGet, "/api/v1/users/current-user"},
		{http.MethodPost, "/api/v1/users/change-password"},
		{http.MethodPatch, "/api/v1/users/account-update"},
		{http.MethodGet, "/api/v1/users/channel/alice"},
		{http.MethodGet, "/api/v1/users/watch-history"},
	}

	for _, route := range routes {
		rec, body := env.do(t, withBearer(httptest.NewRequest(route.method, route.path, nil), "not-a-jwt"))
		if rec.Code != http.StatusUnauthorized || body.Message != "Unauthorized" {
			t.Fatalf("%s %s: expected 401 got %d (%s)", route.method, route.path, rec.Code, body.Message)
		}
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com")
	session, _ := env.login(t, "alice")

	rec, body := env.do(t, withBearer(jsonRequest(t, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "wrong", "newPassword": "next"}), session.AccessToken))
	if rec.Code != http.StatusBadRequest || body.Message != "Invalid old password" {
		t.Fatalf("expected 400 invalid old password got %d (%s)", rec.Code, body.Message)
	}

	rec, _ = env.do(t, withBearer(jsonRequest(t, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "pw123", "newPassword": "next"}), session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec, _ = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{"username": "alice", "password": "next"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200 got %d", rec.Code)
	}
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com")
	env.register(t, "bob", "bob@x.com")
	session, _ := env.login(t, "alice")

	cases := []struct {
		name    string
		payload map[string]string
		status  int
	}{
		{"missing email", map[string]string{"fullName": "Alice B"}, http.StatusBadRequest},
		{"email taken", map[string]string{"fullName": "Alice B", "email": "bob@x.com"}, http.StatusConflict},
		{"success", map[string]string{"fullName": " Alice B ", "email": "NEW@x.com"}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := env.do(t, withBearer(jsonRequest(t, http.MethodPatch, "/api/v1/users/account-update", tc.payload), session.AccessToken))
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d (%s)", tc.status, rec.Code, body.Message)
			}
			if tc.status != http.StatusOK {
				return
			}
			var user models.User
			if err := json.Unmarshal(body.Data, &user); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if user.Email != "new@x.com" || user.FullName != "Alice B" {
				t.Fatalf("unexpected updated user %+v", user)
			}
		})
	}
}

func TestUpdateImages(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com")
	session, _ := env.login(t, "alice")

	cases := []struct {
		name   string
		path   string
		files  map[string]string
		status int
	}{
		{"avatar missing", "/api/v1/users/avatar", nil, http.StatusBadRequest},
		{"avatar upload fails", "/api/v1/users/avatar", map[string]string{"avatar": "new.fail"}, http.StatusBadRequest},
		{"avatar", "/api/v1/users/avatar", map[string]string{"avatar": "new.png"}, http.StatusOK},
		{"cover image", "/api/v1/users/cover-image", map[string]string{"coverImage": "cover.jpg"}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := withBearer(multipartRequest(t, http.MethodPatch, tc.path, nil, tc.files), session.AccessToken)
			rec, body := env.do(t, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d (%s)", tc.status, rec.Code, body.Message)
			}
		})
	}

	stored, err := env.store.Users().FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("load alice: %v", err)
	}
	if !strings.HasSuffix(stored.AvatarURL, ".png") || !strings.HasSuffix(stored.CoverImageURL, ".jpg") {
		t.Fatalf("expected both images to be replaced, got %+v", stored)
	}
}

func TestChannelProfileAndWatchHistory(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com")
	bob := env.register(t, "bob", "bob@x.com")
	session, _ := env.login(t, "alice")

	video := models.Video{ID: "video-1", OwnerID: bob.ID, Title: "Intro", CreatedAt: time.Now().UTC()}
	if err := env.store.Videos().Create(context.Background(), video); err != nil {
		t.Fatalf("create video: %v", err)
	}

	rec, body := env.do(t, withBearer(httptest.NewRequest(http.MethodPost, "/api/v1/users/channel/bob/subscribe", nil), session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("subscribe: expected 200 got %d (%s)", rec.Code, body.Message)
	}

	rec, body = env.do(t, withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/channel/bob", nil), session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200 got %d", rec.Code)
	}
	var profile models.ChannelProfile
	if err := json.Unmarshal(body.Data, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.SubscribersCount != 1 || profile.SubscribedToCount != 0 || !profile.IsSubscribed {
		t.Fatalf("unexpected profile %+v", profile)
	}

	rec, _ = env.do(t, withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/channel?username=bob", nil), session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("profile by query: expected 200 got %d", rec.Code)
	}

	rec, _ = env.do(t, withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/channel/nobody", nil), session.AccessToken))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown channel: expected 404 got %d", rec.Code)
	}

	rec, _ = env.do(t, withBearer(httptest.NewRequest(http.MethodPost, "/api/v1/users/watch-history/video-1", nil), session.AccessToken))
	if rec.Code != http.StatusCreated {
		t.Fatalf("record watch: expected 201 got %d", rec.Code)
	}
	rec, _ = env.do(t, withBearer(httptest.NewRequest(http.MethodPost, "/api/v1/users/watch-history/missing", nil), session.AccessToken))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("record unknown video: expected 404 got %d", rec.Code)
	}

	rec, body = env.do(t, withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/watch-history", nil), session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("watch history: expected 200 got %d", rec.Code)
	}
	var history []map[string]any
	if err := json.Unmarshal(body.Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0]["_id"] != "video-1" {
		t.Fatalf("unexpected history %v", history)
	}
	owner, ok := history[0]["owner"].(map[string]any)
	if !ok || owner["username"] != "bob" || owner["email"] != nil {
		t.Fatalf("unexpected owner %v", history[0]["owner"])
	}

	rec, _ = env.do(t, withBearer(httptest.NewRequest(http.MethodDelete, "/api/v1/users/channel/bob/subscribe", nil), session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("unsubscribe: expected 200 got %d", rec.Code)
	}

	rec, _ = env.do(t, withBearer(httptest.NewRequest(http.MethodPost, "/api/v1/users/channel/alice/subscribe", nil), session.AccessToken))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self subscription: expected 400 got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("health: expected 200 got %d", rec.Code)
	}

	unhealthy := NewRouter(Dependencies{DB: failingPinger{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	rec = httptest.NewRecorder()
	unhealthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health with failing db: expected 503 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "streamhub_http_requests_total") {
		t.Fatalf("metrics: expected exposition with request counter, got %d", rec.Code)
	}

	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: expected 404 got %d", rec.Code)
	}
}

func TestAuthRateLimitIgnoresForwardedHeadersByDefault(t *testing.T) {
	cases := []struct {
		name       string
		trustProxy bool
		second     int
	}{
		{"direct clients", false, http.StatusTooManyRequests},
		{"behind trusted proxy", true, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, func(d *Dependencies) {
				d.AuthLimiter = middleware.NewKeyedLimiter(1, 1)
				d.TrustProxy = tc.trustProxy
			})

			login := func(forwardedFor string) int {
				req := jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{"username": "nobody", "password": "pw"})
				req.Header.Set("X-Forwarded-For", forwardedFor)
				rec, _ := env.do(t, req)
				return rec.Code
			}

			if got := login("203.0.113.1"); got != http.StatusNotFound {
				t.Fatalf("first login: expected 404 got %d", got)
			}
			if got := login("203.0.113.2"); got != tc.second {
				t.Fatalf("second login with a new forwarded address: expected %d got %d", tc.second, got)
			}
		})
	}
}
