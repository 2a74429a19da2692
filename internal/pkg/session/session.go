// Package session carries the signed identity token in the jwt cookie.
package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const CookieName = "jwt"

// Cookie holds the attributes shared by Set and Clear.
type Cookie struct {
	Secure bool
	MaxAge time.Duration
}

func (c Cookie) write(ctx *gin.Context, value string, maxAge int) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Set stores token on the response.
func (c Cookie) Set(ctx *gin.Context, token string) {
	c.write(ctx, token, int(c.MaxAge/time.Second))
}

// Clear expires the cookie immediately.
func (c Cookie) Clear(ctx *gin.Context) {
	c.write(ctx, "", -1)
}

// Read returns the token, or "" when the cookie is absent.
func Read(ctx *gin.Context) string {
	v, err := ctx.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return v
}
