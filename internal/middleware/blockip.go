package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BlockList answers exact-match denylist lookups.
type BlockList interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
}

// BlockIP rejects denylisted clients with a localized 403. Lookup errors
// are logged and the request continues.
func BlockIP(list BlockList, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		ip := ClientIP(c)
		blocked, err := list.IsBlocked(c.Request.Context(), ip)
		if err != nil {
			log.Error("ip denylist lookup failed", zap.String("ip", ip), zap.Error(err))
			c.Next()
			return
		}
		if blocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"ok":      0,
				"code":    http.StatusForbidden,
				"message": i18n.T(CurrentLocale(c), i18n.CommonForbidden),
			})
			return
		}
		c.Next()
	}
}

// ClientIP prefers the first X-Forwarded-For entry and falls back to the
// socket address.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	addr := strings.TrimSpace(c.Request.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
