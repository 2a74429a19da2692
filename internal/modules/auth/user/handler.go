package user

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/dvinyl/core/internal/pkg/response"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	settingsPath       = "/settings"
	languageCookieDays = 365
)

// Handler serves the account settings pages.
type Handler struct {
	svc    *Service
	cookie session.Cookie
	log    *zap.Logger
}

type HandlerOption func(*Handler)

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l.Named("settings")
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

// RegisterRoutes mounts /settings behind authMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group(settingsPath, authMW)
	g.GET("", h.get)
	g.POST("/check-username", h.checkUsername)
	g.POST("/update-username", h.updateUsername)
	g.POST("/update-password", h.updatePassword)
	g.POST("/update-theme", h.updateTheme)
	g.POST("/update-language", h.updateLanguage)
}

func reply(c *gin.Context, status int, ok bool, key string, args ...interface{}) {
	c.JSON(status, result{Success: ok, Message: middleware.T(c, key, args...)})
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.log.Error(op+" failed", zap.String("user_id", middleware.CurrentIdentity(c).UserID()), zap.Error(err))
	_ = c.Error(err)
	reply(c, http.StatusInternalServerError, false, i18n.ErrGenericServer)
}

func (h *Handler) get(c *gin.Context) {
	u := middleware.CurrentIdentity(c).User()
	response.OK(c, gin.H{"user": ToResponse(&u)})
}

func (h *Handler) checkUsername(c *gin.Context) {
	var dto CheckUsernameDTO
	_ = c.ShouldBind(&dto)
	id := middleware.CurrentIdentity(c)

	if dto.Username == id.User().Username {
		reply(c, http.StatusOK, true, i18n.MsgUsernameCurrent)
		return
	}
	ok, err := h.svc.UsernameAvailable(c.Request.Context(), id.UserID(), dto.Username)
	if err != nil {
		h.fail(c, "check username", err)
		return
	}
	if !ok {
		reply(c, http.StatusBadRequest, false, i18n.ErrUsernameTaken)
		return
	}
	reply(c, http.StatusOK, true, i18n.MsgUsernameAvailable)
}

func (h *Handler) updateUsername(c *gin.Context) {
	var dto CheckUsernameDTO
	_ = c.ShouldBind(&dto)

	err := h.svc.UpdateUsername(c.Request.Context(), middleware.CurrentIdentity(c).UserID(), dto.Username)
	switch {
	case err == nil:
		response.Redirect(c, settingsPath)
	case errors.Is(err, ErrDuplicate):
		reply(c, http.StatusBadRequest, false, i18n.ErrUsernameTaken)
	case errors.Is(err, ErrMissingFields):
		reply(c, http.StatusBadRequest, false, i18n.ErrRequiredFields)
	default:
		h.fail(c, "update username", err)
	}
}

// updatePassword rotates last_change, which ends every session of the
// account including this one.
func (h *Handler) updatePassword(c *gin.Context) {
	var dto UpdatePasswordDTO
	_ = c.ShouldBind(&dto)

	err := h.svc.ChangePassword(c.Request.Context(), middleware.CurrentIdentity(c).UserID(), dto.CurrentPassword, dto.NewPassword)
	switch {
	case err == nil:
		h.cookie.Clear(c)
		reply(c, http.StatusOK, true, i18n.MsgPasswordUpdated)
	case errors.Is(err, ErrInvalidCredential):
		reply(c, http.StatusBadRequest, false, i18n.ErrCurrentPassword)
	case errors.Is(err, ErrPasswordReuse):
		reply(c, http.StatusBadRequest, false, i18n.ErrPasswordReuse)
	case errors.Is(err, ErrPasswordTooShort):
		reply(c, http.StatusBadRequest, false, i18n.ErrPasswordTooShort, MinPasswordLength)
	default:
		h.fail(c, "update password", err)
	}
}

func (h *Handler) updateTheme(c *gin.Context) {
	var dto UpdateThemeDTO
	_ = c.ShouldBind(&dto)

	err := h.svc.UpdateTheme(c.Request.Context(), middleware.CurrentIdentity(c).UserID(), dto.Theme)
	switch {
	case err == nil:
		reply(c, http.StatusOK, true, i18n.MsgThemeUpdated)
	case errors.Is(err, ErrInvalidTheme):
		reply(c, http.StatusBadRequest, false, i18n.ErrInvalidTheme)
	default:
		h.fail(c, "update theme", err)
	}
}

func (h *Handler) updateLanguage(c *gin.Context) {
	var dto UpdateLanguageDTO
	_ = c.ShouldBind(&dto)

	err := h.svc.UpdateLanguage(c.Request.Context(), middleware.CurrentIdentity(c).UserID(), dto.Language)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidLanguage):
		reply(c, http.StatusBadRequest, false, i18n.ErrInvalidLanguage)
		return
	default:
		h.fail(c, "update language", err)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     i18n.CookieName,
		Value:    dto.Language,
		Path:     "/",
		MaxAge:   languageCookieDays * 24 * 60 * 60,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	response.Redirect(c, localReferer(c.GetHeader("Referer"), settingsPath))
}

// localReferer keeps only the path of the referer so the redirect never
// leaves the site.
func localReferer(raw, fallback string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return fallback
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
