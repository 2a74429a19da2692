// Package setup creates the first administrator of a fresh installation.
package setup

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/models"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/dvinyl/core/internal/pkg/response"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Accounts interface {
	Count(ctx context.Context) (int64, error)
	CreateFirstAdmin(ctx context.Context, in user.CreateInput) (*models.UserModel, error)
}

type Signer interface {
	Sign(userID string) (string, error)
}

type SetupDTO struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
}

type Handler struct {
	users  Accounts
	tokens Signer
	cookie session.Cookie
	log    *zap.Logger
}

type HandlerOption func(*Handler)

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l.Named("setup")
		}
	}
}

func NewHandler(users Accounts, tokens Signer, cookie session.Cookie, opts ...HandlerOption) *Handler {
	h := &Handler{users: users, tokens: tokens, cookie: cookie, log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(middleware.SetupPath, h.checkInit)
	rg.POST(middleware.SetupPath, h.create)
}

func (h *Handler) installed(c *gin.Context) (bool, bool) {
	n, err := h.users.Count(c.Request.Context())
	if err != nil {
		h.log.Error("count users failed", zap.Error(err))
		response.InternalError(c, err)
		return false, false
	}
	return n > 0, true
}

// GET /setup — {isInit:false} on an empty store, otherwise back to /login.
func (h *Handler) checkInit(c *gin.Context) {
	done, ok := h.installed(c)
	if !ok {
		return
	}
	if done {
		response.Redirect(c, middleware.LoginPath)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isInit": false})
}

// POST /setup — creates the sole administrator and signs them in.
func (h *Handler) create(c *gin.Context) {
	done, ok := h.installed(c)
	if !ok {
		return
	}
	if done {
		response.ForbiddenMsg(c, middleware.T(c, i18n.ErrSetupDone))
		return
	}

	var dto SetupDTO
	_ = c.ShouldBind(&dto)
	u, err := h.users.CreateFirstAdmin(c.Request.Context(), user.CreateInput{
		Username: dto.Username,
		Email:    dto.Email,
		Password: dto.Password,
	})
	switch {
	case err == nil:
	case errors.Is(err, user.ErrMissingFields):
		response.BadRequest(c, middleware.T(c, i18n.ErrRequiredFields))
		return
	case errors.Is(err, user.ErrPasswordTooShort):
		response.BadRequest(c, middleware.T(c, i18n.ErrPasswordTooShort, user.MinPasswordLength))
		return
	case errors.Is(err, user.ErrAlreadyInstalled), errors.Is(err, user.ErrDuplicate):
		// a concurrent setup won the race
		response.ForbiddenMsg(c, middleware.T(c, i18n.ErrSetupDone))
		return
	default:
		h.log.Error("create admin failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}

	h.log.Info("installation initialized", zap.String("user_id", u.ID), zap.String("username", u.Username))
	token, err := h.tokens.Sign(u.ID)
	if err != nil {
		h.log.Error("sign setup token failed", zap.Error(err))
		response.Redirect(c, middleware.LoginPath)
		return
	}
	h.cookie.Set(c, token)
	response.Redirect(c, middleware.RootPath)
}
