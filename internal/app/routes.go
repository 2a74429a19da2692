package app

import (
	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/modules/admin"
	"github.com/dvinyl/core/internal/modules/auth/auth"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/modules/content/album"
	"github.com/dvinyl/core/internal/modules/setup"
	"github.com/dvinyl/core/internal/modules/storage/backup"
	"github.com/dvinyl/core/internal/modules/system/firewall"
	"github.com/dvinyl/core/internal/modules/system/health"
	"github.com/dvinyl/core/internal/modules/system/loginlog"
	"github.com/dvinyl/core/internal/pkg/jwt"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/dvinyl/core/internal/pkg/throttle"
	"go.uber.org/zap"
)

// services are the long-lived collaborators shared by several modules.
type services struct {
	users    *user.Service
	firewall *firewall.Service
	tokens   *jwt.Service
	throttle throttle.Throttle
	cookie   session.Cookie
}

func (a *App) registerRoutes(s services) {
	root := a.router.Group("")

	authMW := middleware.RequireAuthenticated()
	adminMW := middleware.RequireAdministrator()
	importMW := middleware.RequireAdministratorOnceInstalled(s.users, a.logger)

	logs := loginlog.NewService(a.db)

	// System
	var cache health.Pinger
	if a.redis != nil {
		cache = a.redis
	}
	health.RegisterRoutes(root, a.db, cache)

	// Auth
	authSvc := auth.NewService(s.users, s.throttle, s.tokens, logs,
		auth.WithLocator(a.locator),
		auth.WithLogger(a.logger),
	)
	auth.NewHandler(authSvc, s.cookie, auth.WithHandlerLogger(a.logger)).RegisterRoutes(root)
	setup.NewHandler(s.users, s.tokens, s.cookie, setup.WithLogger(a.logger)).RegisterRoutes(root)
	user.NewHandler(s.users, s.cookie, user.WithLogger(a.logger)).RegisterRoutes(root, authMW)

	// Administration
	admin.NewHandler(s.users, s.firewall, logs, admin.WithLogger(a.logger)).RegisterRoutes(root, authMW, adminMW)

	// Content
	albums := album.NewService(a.db, s.users)
	album.NewHandler(albums, album.WithLogger(a.logger)).RegisterRoutes(root, authMW, adminMW)

	// Storage
	backupOpts := []backup.HandlerOption{backup.WithHandlerLogger(a.logger)}
	if a.cfg.S3Enabled() {
		uploader, err := backup.NewS3Uploader(a.cfg.S3)
		if err != nil {
			a.logger.Warn("backup offload disabled", zap.Error(err))
		} else {
			backupOpts = append(backupOpts, backup.WithUploader(uploader, a.cfg.S3.Prefix))
		}
	}
	backupSvc := backup.NewService(a.db, backup.WithLogger(a.logger))
	backup.NewHandler(backupSvc, s.cookie, backupOpts...).RegisterRoutes(root, authMW, adminMW, importMW)
}
