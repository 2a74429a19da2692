// Package admin serves account management, the IP denylist and the login
// audit trail to administrators.
package admin

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/modules/system/firewall"
	"github.com/dvinyl/core/internal/modules/system/loginlog"
	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/dvinyl/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	users    *user.Service
	firewall *firewall.Service
	logs     *loginlog.Service
	log      *zap.Logger
}

type HandlerOption func(*Handler)

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l.Named("admin")
		}
	}
}

func NewHandler(users *user.Service, fw *firewall.Service, logs *loginlog.Service, opts ...HandlerOption) *Handler {
	h := &Handler{users: users, firewall: fw, logs: logs, log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts /admin. Both gates run in order: authMW, adminMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group(adminPath, authMW, adminMW)
	g.GET("", h.dashboard)
	g.POST("/add-user", h.addUser)
	g.POST("/reset-password", h.resetPassword)
	g.POST("/delete-user", h.deleteUser)
	g.POST("/block-ip", h.blockIP)
	g.POST("/unblock-ip", h.unblockIP)
}

func back(c *gin.Context, flash string) {
	if flash == "" {
		response.Redirect(c, adminPath)
		return
	}
	response.Redirect(c, adminPath+"?"+url.Values{"msg": {flash}}.Encode())
}

func (h *Handler) actor(c *gin.Context) zap.Field {
	return zap.String("admin_id", middleware.CurrentIdentity(c).UserID())
}

func (h *Handler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.users.List(ctx)
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	blocked, err := h.firewall.List(ctx)
	if err != nil {
		h.log.Error("list blocked ips failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	logs, err := h.logs.Latest(ctx, loginlog.DashboardLimit)
	if err != nil {
		h.log.Error("list login logs failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}

	d := Dashboard{
		Users:      user.ToResponses(users),
		BlockedIPs: toBlockedIPResponses(blocked),
		Logs:       toLoginLogResponses(logs),
	}
	if key, ok := flashKeys[c.Query("msg")]; ok {
		d.Message = middleware.T(c, key)
	}
	response.OK(c, d)
}

// POST /admin/add-user — the generated password is returned once.
func (h *Handler) addUser(c *gin.Context) {
	var dto AddUserDTO
	_ = c.ShouldBind(&dto)

	plain, err := user.RandomPassword(user.ResetPasswordLength)
	if err != nil {
		h.log.Error("generate password failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	u, err := h.users.Create(c.Request.Context(), user.CreateInput{
		Username: dto.Username,
		Email:    dto.Email,
		Password: plain,
	})
	switch {
	case err == nil:
	case errors.Is(err, user.ErrMissingFields):
		response.BadRequest(c, middleware.T(c, i18n.ErrRequiredFields))
		return
	case errors.Is(err, user.ErrEmailTaken):
		response.Conflict(c, middleware.T(c, i18n.ErrEmailTaken))
		return
	case errors.Is(err, user.ErrDuplicate):
		response.Conflict(c, middleware.T(c, i18n.ErrUsernameTaken))
		return
	default:
		h.log.Error("create user failed", h.actor(c), zap.Error(err))
		response.InternalError(c, err)
		return
	}

	h.log.Info("user created", h.actor(c), zap.String("user_id", u.ID), zap.String("username", u.Username))
	response.Created(c, credentialResponse{
		User:     user.ToResponse(u),
		Password: plain,
		Message:  middleware.T(c, i18n.MsgUserCreated, u.Username),
	})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var dto UserIDDTO
	_ = c.ShouldBind(&dto)

	u, plain, err := h.users.ResetPassword(c.Request.Context(), dto.UserID)
	if errors.Is(err, user.ErrNotFound) {
		back(c, "")
		return
	}
	if err != nil {
		h.log.Error("reset password failed", h.actor(c), zap.String("user_id", dto.UserID), zap.Error(err))
		response.InternalError(c, err)
		return
	}

	h.log.Info("password reset", h.actor(c), zap.String("user_id", u.ID))
	c.JSON(http.StatusOK, credentialResponse{
		User:     user.ToResponse(u),
		Password: plain,
		Message:  middleware.T(c, i18n.MsgPasswordResetSuccess, u.Username),
	})
}

func (h *Handler) deleteUser(c *gin.Context) {
	var dto UserIDDTO
	_ = c.ShouldBind(&dto)

	err := h.users.Delete(c.Request.Context(), dto.UserID, middleware.CurrentIdentity(c).UserID())
	if errors.Is(err, user.ErrDeleteSelf) {
		back(c, flashDeleteSelfError)
		return
	}
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			h.log.Error("delete user failed", h.actor(c), zap.String("user_id", dto.UserID), zap.Error(err))
		}
		back(c, "")
		return
	}
	h.log.Info("user deleted", h.actor(c), zap.String("user_id", dto.UserID))
	back(c, flashUserDeleted)
}

func (h *Handler) blockIP(c *gin.Context) {
	var dto BlockIPDTO
	_ = c.ShouldBind(&dto)

	if _, err := h.firewall.Block(c.Request.Context(), dto.IPAddress); err != nil {
		if errors.Is(err, firewall.ErrInvalidIP) {
			back(c, flashIPInvalid)
			return
		}
		h.log.Error("block ip failed", h.actor(c), zap.Error(err))
		back(c, "")
		return
	}
	h.log.Info("ip blocked", h.actor(c), zap.String("ip", dto.IPAddress))
	back(c, flashIPBlocked)
}

func (h *Handler) unblockIP(c *gin.Context) {
	var dto UnblockIPDTO
	_ = c.ShouldBind(&dto)

	if err := h.firewall.Unblock(c.Request.Context(), dto.IPID); err != nil {
		if !errors.Is(err, firewall.ErrNotFound) {
			h.log.Error("unblock ip failed", h.actor(c), zap.Error(err))
		}
		back(c, "")
		return
	}
	back(c, flashIPUnblocked)
}
