package middleware

import (
	"context"

	"github.com/dvinyl/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	LoginPath = "/login"
	RootPath  = "/"
	SetupPath = "/setup"
)

// UserCounter reports how many accounts exist.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

// RequireAuthenticated redirects anonymous callers to the login page.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).Authenticated() {
			response.Redirect(c, LoginPath)
			return
		}
		c.Next()
	}
}

// RequireAdministrator redirects callers without the administrator flag to
// the root. It does not say why.
func RequireAdministrator() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		if !id.Authenticated() {
			response.Redirect(c, LoginPath)
			return
		}
		if !id.IsAdmin() {
			response.Redirect(c, RootPath)
			return
		}
		c.Next()
	}
}

// RequireAdministratorOnceInstalled lets anyone through while no account
// exists, and requires an administrator afterwards.
func RequireAdministratorOnceInstalled(counter UserCounter, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	admin := RequireAdministrator()
	return func(c *gin.Context) {
		n, err := counter.Count(c.Request.Context())
		if err != nil {
			log.Error("count users failed", zap.Error(err))
			response.InternalError(c, err)
			return
		}
		if n == 0 {
			c.Next()
			return
		}
		admin(c)
	}
}
