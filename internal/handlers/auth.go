package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/logging"
	"github.com/streamhub/backend/internal/models"
	"github.com/streamhub/backend/internal/repositories"
	"github.com/streamhub/backend/internal/response"
	"github.com/streamhub/backend/internal/storage"
)

// multipartMemory is how much of a multipart body is buffered before spilling to disk.
const multipartMemory = 8 << 20

// AuthHandler implements account and session endpoints.
type AuthHandler struct {
	Users          UserStore
	Sessions       SessionManager
	Hasher         PasswordHasher
	Spool          FileSpool
	Uploader       AssetUploader
	Cookies        CookieConfig
	MaxUploadBytes int64
	NowFunc        func() time.Time
}

// Register handles POST /register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := h.parseMultipart(w, r); err != nil {
		return err
	}

	var req registerRequest
	req.bindForm(r.MultipartForm.Value)
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}

	if _, err := h.Users.FindByUsernameOrEmail(ctx, req.Username, req.Email); err == nil {
		return apperr.Conflict("User with email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperr.Internal("Something went wrong while registering the user", err)
	}

	if !hasFile(r, "avatar") {
		return apperr.Validation("Avatar file is required")
	}

	avatarURL, err := h.uploadFormFile(ctx, r, "avatar")
	if err != nil {
		return apperr.Internal("Avatar upload failed", err)
	}

	var coverURL string
	if hasFile(r, "coverImage") {
		coverURL, err = h.uploadFormFile(ctx, r, "coverImage")
		if err != nil {
			logger.Warn("cover image upload failed, continuing without it", "error", err)
			coverURL = ""
		}
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return apperr.Internal("Something went wrong while registering the user", err)
	}

	now := h.now()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      req.Username,
		Email:         req.Email,
		FullName:      req.FullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return apperr.Conflict("User with email or username already exists")
		}
		return apperr.Internal("Something went wrong while registering the user", err)
	}

	created, err := h.Users.FindByID(ctx, user.ID)
	if err != nil || created.ID == "" {
		return apperr.Internal("Something went wrong while registering the user", err)
	}

	logger.Info("user registered", "userId", created.ID)
	sanitized := created.Sanitized()
	response.JSON(ctx, w, http.StatusCreated, sanitized, "User registered successfully")
	return nil
}

// Login handles POST /login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req loginRequest
	if err := decodeRequest(r, &req); err != nil {
		return err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" && email == "" {
		return apperr.Validation("Username or email is required")
	}

	user, err := h.Users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("User does not exist")
		}
		return apperr.Internal("Something went wrong", err)
	}

	if !h.Hasher.Verify(req.Password, user.PasswordHash) {
		logging.FromContext(ctx).Warn("login password mismatch", "userId", user.ID)
		return apperr.Validation("Invalid user credentials")
	}

	tokens, err := h.Sessions.IssuePair(ctx, user.ID)
	if err != nil {
		return err
	}

	h.Cookies.setSession(w, tokens)
	sanitized := user.Sanitized()
	response.JSON(ctx, w, http.StatusOK, sessionResponse{
		User:         &sanitized,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "User logged in successfully")
	return nil
}

// Logout handles POST /logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := h.Sessions.Revoke(r.Context(), user.ID); err != nil {
		return err
	}

	h.Cookies.clearSession(w)
	response.JSON(r.Context(), w, http.StatusOK, struct{}{}, "User logged out")
	return nil
}

// RefreshToken handles POST /refresh-token. The cookie wins over the body.
func (h AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	token := ""
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" {
		var req refreshRequest
		if err := decodeRequest(r, &req); err != nil {
			return apperr.Unauthorized(err)
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		return apperr.Unauthorized(nil)
	}

	tokens, err := h.Sessions.Rotate(ctx, token)
	if err != nil {
		return err
	}

	h.Cookies.setSession(w, tokens)
	response.JSON(ctx, w, http.StatusOK, sessionResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
	return nil
}

// ChangePassword handles POST /change-password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	caller, err := currentUser(r)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}

	user, err := h.Users.FindByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.Unauthorized(err)
		}
		return apperr.Internal("Something went wrong", err)
	}

	if !h.Hasher.Verify(req.OldPassword, user.PasswordHash) {
		return apperr.Validation("Invalid old password")
	}

	hash, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		return apperr.Internal("Something went wrong", err)
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperr.Internal("Something went wrong", err)
	}

	response.JSON(ctx, w, http.StatusOK, struct{}{}, "Password changed successfully")
	return nil
}

// CurrentUser handles GET /current-user.
func (h AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	response.JSON(r.Context(), w, http.StatusOK, user.Sanitized(), "Current user fetched successfully")
	return nil
}

// UpdateAccount handles PATCH /account-update.
func (h AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	caller, err := currentUser(r)
	if err != nil {
		return err
	}

	var req accountUpdateRequest
	if err := decodeRequest(r, &req); err != nil {
		return err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}

	user, err := h.Users.UpdateAccount(ctx, caller.ID, req.FullName, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			return apperr.Conflict("Email is already in use")
		case errors.Is(err, repositories.ErrNotFound):
			return apperr.Unauthorized(err)
		}
		return apperr.Internal("Something went wrong", err)
	}

	response.JSON(ctx, w, http.StatusOK, user.Sanitized(), "Account details updated successfully")
	return nil
}

// UpdateAvatar handles PATCH /avatar.
func (h AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) error {
	return h.replaceImage(w, r, "avatar", "Avatar", h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /cover-image.
func (h AuthHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) error {
	return h.replaceImage(w, r, "coverImage", "Cover image", h.Users.UpdateCoverImage)
}

func (h AuthHandler) replaceImage(w http.ResponseWriter, r *http.Request, field, label string,
	update func(ctx context.Context, id, url string) (models.User, error)) error {
	ctx := r.Context()
	caller, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := h.parseMultipart(w, r); err != nil {
		return err
	}
	if !hasFile(r, field) {
		return apperr.Validation(label + " file is missing")
	}

	url, err := h.uploadFormFile(ctx, r, field)
	if err != nil {
		logging.FromContext(ctx).Warn("image upload failed", "field", field, "error", err)
		return apperr.Validation("Error while uploading " + strings.ToLower(label))
	}

	user, err := update(ctx, caller.ID, url)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.Unauthorized(err)
		}
		return apperr.Internal("Something went wrong", err)
	}

	response.JSON(ctx, w, http.StatusOK, user.Sanitized(), label+" updated successfully")
	return nil
}

func (h AuthHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 2*h.MaxUploadBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Uploaded files are too large")
		}
		return apperr.Validation("Invalid multipart form")
	}
	return nil
}

func hasFile(r *http.Request, field string) bool {
	return r.MultipartForm != nil && len(r.MultipartForm.File[field]) > 0
}

// uploadFormFile spools the named form file and hands it to the uploader.
func (h AuthHandler) uploadFormFile(ctx context.Context, r *http.Request, field string) (string, error) {
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return "", storage.ErrNoFile
	}
	header := headers[0]
	if h.MaxUploadBytes > 0 && header.Size > h.MaxUploadBytes {
		return "", storage.ErrTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	localPath, err := h.Spool.Save(file, header.Filename)
	if err != nil {
		return "", err
	}

	return h.Uploader.Upload(ctx, localPath)
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
