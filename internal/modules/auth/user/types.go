package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvinyl/core/internal/models"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	MinPasswordLength   = 6
	ResetPasswordLength = 12
)

var (
	// ErrInvalidCredential is the only credential failure callers may reveal.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnknownIdentifier = fmt.Errorf("%w: unknown identifier", ErrInvalidCredential)
	ErrWrongSecret       = fmt.Errorf("%w: wrong secret", ErrInvalidCredential)

	ErrDuplicate        = errors.New("username or email already in use")
	ErrUsernameTaken    = fmt.Errorf("%w: username", ErrDuplicate)
	ErrEmailTaken       = fmt.Errorf("%w: email", ErrDuplicate)
	ErrNotFound         = errors.New("user not found")
	ErrAlreadyInstalled = errors.New("installation already has an account")
	ErrDeleteSelf       = errors.New("an administrator cannot delete their own account")
	ErrMissingFields    = errors.New("username, email and password are required")
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordReuse    = errors.New("new password equals the current one")
	ErrInvalidTheme     = errors.New("invalid theme")
	ErrInvalidLanguage  = errors.New("unsupported language")
)

type CreateInput struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
}

type CheckUsernameDTO struct {
	Username string `json:"username" form:"username"`
}

type UpdatePasswordDTO struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword"`
	NewPassword     string `json:"newPassword"     form:"newPassword"`
}

type UpdateThemeDTO struct {
	Theme string `json:"theme" form:"theme"`
}

type UpdateLanguageDTO struct {
	Language string `json:"language" form:"language"`
}

// Response is the API view of an account. It never carries the hash.
type Response struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Avatar     string    `json:"img"`
	IsAdmin    bool      `json:"is_admin"`
	Theme      string    `json:"theme"`
	Language   string    `json:"language"`
	LastChange time.Time `json:"last_change"`
	Created    time.Time `json:"created"`
}

func ToResponse(u *models.UserModel) *Response {
	if u == nil {
		return nil
	}
	return &Response{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Avatar:     u.Avatar,
		IsAdmin:    u.IsAdmin,
		Theme:      u.Theme,
		Language:   u.Language,
		LastChange: u.LastChange,
		Created:    u.CreatedAt,
	}
}

func ToResponses(list []models.UserModel) []*Response {
	out := make([]*Response, 0, len(list))
	for i := range list {
		out = append(out, ToResponse(&list[i]))
	}
	return out
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
