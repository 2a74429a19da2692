package middleware

import (
	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

const ContextKeyLocale = "locale"

// Locale negotiates the response language for the request.
func Locale() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(i18n.CookieName)
		setLocale(c, i18n.Negotiate(c.Query(i18n.QueryParam), cookie, c.GetHeader("Accept-Language")))
		c.Next()
	}
}

func setLocale(c *gin.Context, tag language.Tag) {
	c.Set(ContextKeyLocale, tag)
}

// CurrentLocale returns the negotiated language, defaulting to French.
func CurrentLocale(c *gin.Context) language.Tag {
	if v, ok := c.Get(ContextKeyLocale); ok {
		if tag, ok := v.(language.Tag); ok {
			return tag
		}
	}
	return i18n.Fallback
}

// T translates key in the request language.
func T(c *gin.Context, key string, args ...interface{}) string {
	return i18n.T(CurrentLocale(c), key, args...)
}
