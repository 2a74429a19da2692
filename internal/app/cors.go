package app

import (
	"net/url"
	"strings"
)

// extractOriginHost returns the lowercased "host[:port]" of an origin URL.
func extractOriginHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return strings.ToLower(origin)
	}
	return strings.ToLower(u.Host)
}

// matchOriginPattern accepts an exact host, "*", "*.domain" or "host:*".
func matchOriginPattern(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	switch {
	case pattern == "*", pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
