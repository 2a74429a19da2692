package auth

import (
	"errors"
	"fmt"

	"github.com/dvinyl/core/internal/models"
	"github.com/dvinyl/core/internal/pkg/throttle"
	"golang.org/x/text/language"
)

var ErrMissingCredentials = errors.New("email and password are required")

// RateLimitedError is returned while the identifier is blocked. Fresh is
// set when this very attempt triggered the block.
type RateLimitedError struct {
	Status throttle.Status
	Fresh  bool
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %ds", e.Status.RetryAfterSeconds())
}

type LoginDTO struct {
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
	// Locale translates audit fields the lookup could not resolve.
	Locale language.Tag
}

type LoginResult struct {
	User  *models.UserModel
	Token string
}

type loginResponse struct {
	User string `json:"user"`
}

type loginErrors struct {
	Login string `json:"login"`
}

type loginErrorResponse struct {
	Errors     loginErrors `json:"errors"`
	RetryAfter int         `json:"retry_after,omitempty"`
}
