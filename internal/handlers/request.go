package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// formBinder is implemented by request payloads that may also arrive as
// url-encoded or multipart forms.
type formBinder interface {
	bindForm(values url.Values)
}

// decodeRequest fills dst from a JSON body or a form. An empty body leaves dst untouched.
func decodeRequest(r *http.Request, dst formBinder) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return apperr.Validation("Invalid request body")
		}
		dst.bindForm(r.PostForm)
		return nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return apperr.Validation("Invalid request body")
		}
		dst.bindForm(r.MultipartForm.Value)
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// validationError turns validator failures into a single caller-facing message.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("Invalid request")
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "email" {
			return apperr.Validation("Invalid email address")
		}
	}
	return apperr.Validation("All fields are required")
}

func trimmed(values url.Values, key string) string {
	return strings.TrimSpace(values.Get(key))
}

type registerRequest struct {
	FullName string `validate:"required"`
	Email    string `validate:"required,email"`
	Username string `validate:"required"`
	Password string `validate:"required"`
}

func (req *registerRequest) bindForm(values url.Values) {
	req.FullName = trimmed(values, "fullName")
	req.Email = strings.ToLower(trimmed(values, "email"))
	req.Username = strings.ToLower(trimmed(values, "username"))
	req.Password = values.Get("password")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *loginRequest) bindForm(values url.Values) {
	req.Username = values.Get("username")
	req.Email = values.Get("email")
	req.Password = values.Get("password")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (req *refreshRequest) bindForm(values url.Values) {
	req.RefreshToken = values.Get("refreshToken")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (req *changePasswordRequest) bindForm(values url.Values) {
	req.OldPassword = values.Get("oldPassword")
	req.NewPassword = values.Get("newPassword")
}

type accountUpdateRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

func (req *accountUpdateRequest) bindForm(values url.Values) {
	req.FullName = values.Get("fullName")
	req.Email = values.Get("email")
}

type sessionResponse struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}
