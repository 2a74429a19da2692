package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dvinyl/core/internal/config"
	"github.com/dvinyl/core/internal/database"
	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/modules/system/firewall"
	"github.com/dvinyl/core/internal/pkg/geo"
	"github.com/dvinyl/core/internal/pkg/jwt"
	pkgredis "github.com/dvinyl/core/internal/pkg/redis"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	db      *gorm.DB
	redis   *pkgredis.Client
	locator geo.Locator
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// New initializes the application: DB → Redis → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.Throttle.Backend == config.ThrottleBackendRedis {
		rc, err = pkgredis.Connect(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return assemble(logger, cfg, db, rc)
}

// assemble builds the router on top of already opened stores.
func assemble(logger *zap.Logger, cfg *config.AppConfig, db *gorm.DB, rc *pkgredis.Client) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens, err := newSigner(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	users := user.NewService(db)
	if err := users.EnsureAdmin(context.Background(), cfg.AdminID); err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
		logger.Warn("configured admin account does not exist yet", zap.String("admin_id", cfg.AdminID))
	}

	ctx, cancel := context.WithCancel(context.Background())
	th := newThrottle(cfg, rc, logger)
	startBackgroundJobs(ctx, th, logger)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	fw := firewall.NewService(db)
	cookie := session.Cookie{Secure: cfg.IsProduction(), MaxAge: jwt.DefaultTTL}
	router.Use(middleware.Locale())
	router.Use(middleware.BlockIP(fw, logger))
	router.Use(middleware.Installation(users, logger))
	router.Use(middleware.Identify(users, tokens, cookie, logger))

	app := &App{
		cfg:     cfg,
		router:  router,
		db:      db,
		redis:   rc,
		locator: openLocator(cfg, logger),
		logger:  logger,
		cancel:  cancel,
	}
	app.registerRoutes(services{
		users:    users,
		firewall: fw,
		tokens:   tokens,
		throttle: th,
		cookie:   cookie,
	})
	return app, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		conf.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		conf.AllowOriginFunc = func(origin string) bool { return true }
	}
	return conf
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and releases the stores.
func (a *App) Shutdown() {
	a.cancel()
	if closer, ok := a.locator.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("close geoip database", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
