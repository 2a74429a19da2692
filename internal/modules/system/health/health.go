package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

// Pinger is an optional dependency such as the Redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes mounts GET /health. It reports 503 when a dependency is down.
func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, cache Pinger) {
	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()

		sqlDB, err := db.DB()
		dbOK := err == nil && sqlDB.PingContext(ctx) == nil

		body := gin.H{"database": dbOK}
		healthy := dbOK
		if cache != nil {
			cacheOK := cache.Ping(ctx) == nil
			body["redis"] = cacheOK
			healthy = healthy && cacheOK
		}

		code := http.StatusOK
		body["status"] = "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		c.JSON(code, body)
	})
}
