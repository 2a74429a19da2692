package app

import (
	"github.com/dvinyl/core/internal/config"
	"github.com/dvinyl/core/internal/pkg/geo"
	"github.com/dvinyl/core/internal/pkg/jwt"
	pkgredis "github.com/dvinyl/core/internal/pkg/redis"
	"github.com/dvinyl/core/internal/pkg/throttle"
	"go.uber.org/zap"
)

// newSigner falls back to the built-in secret outside production;
// config validation already rejects an empty production secret.
func newSigner(cfg *config.AppConfig, logger *zap.Logger) (*jwt.Service, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("jwt_secret is empty, using built-in development secret")
		secret = jwt.DevSecret
	}
	return jwt.New(secret)
}

func newThrottle(cfg *config.AppConfig, rc *pkgredis.Client, logger *zap.Logger) throttle.Throttle {
	if cfg.Throttle.Backend == config.ThrottleBackendRedis && rc != nil {
		logger.Info("login throttle backed by redis")
		return throttle.NewRedis(rc.Raw())
	}
	return throttle.NewMemory()
}

// openLocator returns geo.Nop when no database is configured or it cannot be read.
func openLocator(cfg *config.AppConfig, logger *zap.Logger) geo.Locator {
	if cfg.GeoIPDB == "" {
		return geo.Nop{}
	}
	db, err := geo.OpenMaxMind(cfg.GeoIPDB)
	if err != nil {
		logger.Warn("geoip database unavailable, login logs will use the unknown country", zap.String("path", cfg.GeoIPDB), zap.Error(err))
		return geo.Nop{}
	}
	return db
}
