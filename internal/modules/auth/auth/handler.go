package auth

import (
	"errors"
	"net/http"

	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/dvinyl/core/internal/pkg/response"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc    *Service
	cookie session.Cookie
	log    *zap.Logger
}

type HandlerOption func(*Handler)

func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l.Named("login")
		}
	}
}

func NewHandler(svc *Service, cookie session.Cookie, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, cookie: cookie, log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/login", h.loginPage)
	rg.POST("/login", h.login)
	rg.GET("/logout", h.logout)
}

func (h *Handler) loginPage(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	if !id.Authenticated() {
		response.OK(c, gin.H{"authenticated": false})
		return
	}
	u := id.User()
	response.OK(c, gin.H{"authenticated": true, "user": user.ToResponse(&u)})
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	_ = c.ShouldBind(&dto)

	res, err := h.svc.Login(c.Request.Context(), LoginInput{
		Email:     dto.Email,
		Password:  dto.Password,
		IP:        middleware.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
		Locale:    middleware.CurrentLocale(c),
	})

	var limited *RateLimitedError
	switch {
	case err == nil:
	case errors.As(err, &limited):
		secs := limited.Status.RetryAfterSeconds()
		key := i18n.ErrTooManyAttemptsTimed
		if limited.Fresh {
			key = i18n.ErrTooManyAttemptsBlocked
		}
		response.TooManyRequests(c, secs, loginErrorResponse{
			Errors:     loginErrors{Login: middleware.T(c, key, secs)},
			RetryAfter: secs,
		})
		return
	case errors.Is(err, user.ErrInvalidCredential):
		c.AbortWithStatusJSON(http.StatusBadRequest, loginErrorResponse{
			Errors: loginErrors{Login: middleware.T(c, i18n.ErrInvalidCredentials)},
		})
		return
	case errors.Is(err, ErrMissingCredentials):
		c.AbortWithStatusJSON(http.StatusBadRequest, loginErrorResponse{
			Errors: loginErrors{Login: middleware.T(c, i18n.ErrRequiredFields)},
		})
		return
	default:
		h.log.Error("login failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}

	h.cookie.Set(c, res.Token)
	c.JSON(http.StatusOK, loginResponse{User: res.User.ID})
}

func (h *Handler) logout(c *gin.Context) {
	h.cookie.Clear(c)
	response.Redirect(c, middleware.RootPath)
}
