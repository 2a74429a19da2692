package middleware

import (
	"strings"

	"github.com/dvinyl/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InstallExemptPrefixes stay reachable before the first account exists.
var InstallExemptPrefixes = []string{"/setup", "/ressources", "/styles", "/uploads", "/login", "/backup", "/health"}

// Installation redirects every non-exempt request to the setup page while
// no account exists. Count errors are logged and the request continues.
func Installation(counter UserCounter, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if isInstallExempt(c.Request.URL.Path) {
			c.Next()
			return
		}
		n, err := counter.Count(c.Request.Context())
		if err != nil {
			log.Error("installation check failed", zap.Error(err))
			c.Next()
			return
		}
		if n == 0 {
			response.Redirect(c, SetupPath)
			return
		}
		c.Next()
	}
}

func isInstallExempt(path string) bool {
	for _, prefix := range InstallExemptPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
