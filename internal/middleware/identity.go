package middleware

import (
	"context"

	"github.com/dvinyl/core/internal/models"
	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/dvinyl/core/internal/pkg/jwt"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ContextKeyIdentity = "identity"

type identityCtxKey struct{}

// Identity is the resolved caller of a request. The zero value is anonymous.
// It is built once by Identify and never mutated afterwards.
type Identity struct {
	user  models.UserModel
	authd bool
}

// Anonymous is the identity of a caller without a valid session.
var Anonymous = Identity{}

func NewIdentity(u *models.UserModel) Identity {
	if u == nil {
		return Anonymous
	}
	return Identity{user: *u, authd: true}
}

func (i Identity) Authenticated() bool { return i.authd }

// User returns a copy of the resolved user record.
func (i Identity) User() models.UserModel { return i.user }

func (i Identity) UserID() string { return i.user.ID }

// IsAdmin reads the stored administrator flag.
func (i Identity) IsAdmin() bool { return i.authd && i.user.IsAdmin }

// UserFinder loads a user by primary key, returning nil when absent.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.UserModel, error)
}

type TokenParser interface {
	Parse(token string) (*jwt.Claims, error)
}

// Identify resolves the session cookie into an Identity and attaches it to
// both the gin context and the request context. It never rejects a request.
func Identify(users UserFinder, tokens TokenParser, cookie session.Cookie, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		setIdentity(c, resolve(c, users, tokens, cookie, log))
		c.Next()
	}
}

func resolve(c *gin.Context, users UserFinder, tokens TokenParser, cookie session.Cookie, log *zap.Logger) Identity {
	raw := session.Read(c)
	if raw == "" {
		return Anonymous
	}

	claims, err := tokens.Parse(raw)
	if err != nil {
		cookie.Clear(c)
		return Anonymous
	}

	u, err := users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		log.Error("identity lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return Anonymous
	}
	if u == nil || u.IssuedBeforeLastChange(claims.IssuedAtTime()) {
		cookie.Clear(c)
		return Anonymous
	}

	if tag, ok := i18n.Parse(u.Language); ok {
		setLocale(c, tag)
	}
	return NewIdentity(u)
}

func setIdentity(c *gin.Context, id Identity) {
	c.Set(ContextKeyIdentity, id)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), identityCtxKey{}, id))
}

// CurrentIdentity returns the identity attached by Identify, or Anonymous.
func CurrentIdentity(c *gin.Context) Identity {
	if v, ok := c.Get(ContextKeyIdentity); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return IdentityFromContext(c.Request.Context())
}

// IdentityFromContext reads the identity from a request context.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Anonymous
	}
	id, _ := ctx.Value(identityCtxKey{}).(Identity)
	return id
}

// WithIdentity returns a middleware attaching a fixed identity. It stands in
// for Identify where the session cookie is not under test.
func WithIdentity(id Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		setIdentity(c, id)
		c.Next()
	}
}
