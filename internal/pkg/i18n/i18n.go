// Package i18n negotiates the request language and translates the few
// messages emitted by the server.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	QueryParam = "lng"
	CookieName = "i18next"
)

var (
	Fallback  = language.French
	Supported = []language.Tag{language.French, language.English}

	matcher = language.NewMatcher(Supported)
	cat     = buildCatalog()
)

// Negotiate picks a supported language from, in order, the lng query
// parameter, the i18next cookie and the Accept-Language header.
func Negotiate(query, cookie, acceptLanguage string) language.Tag {
	for _, code := range []string{query, cookie} {
		if tag, ok := Parse(code); ok {
			return tag
		}
	}
	if strings.TrimSpace(acceptLanguage) != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				return Supported[idx]
			}
		}
	}
	return Fallback
}

// Parse maps a stored or user-supplied code to a supported tag.
func Parse(code string) (language.Tag, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und, false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, false
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.Und, false
	}
	return Supported[idx], true
}

// Code returns the two-letter code stored on users and in the cookie.
func Code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// IsSupported reports whether code names a supported language exactly.
func IsSupported(code string) bool {
	for _, tag := range Supported {
		if Code(tag) == code {
			return true
		}
	}
	return false
}

// Printer returns a printer bound to the message catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

// T translates key for tag.
func T(tag language.Tag, key string, args ...interface{}) string {
	return Printer(tag).Sprintf(key, args...)
}

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(Fallback))
	for key, msg := range french {
		_ = b.SetString(language.French, key, msg)
	}
	for key, msg := range english {
		_ = b.SetString(language.English, key, msg)
	}
	return b
}
