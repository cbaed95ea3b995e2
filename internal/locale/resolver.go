// File: internal/locale/resolver.go

// Package locale maps a shop URL to the checkout persona to browse it with.
// Resolution is a pure function of the URL: the same input always yields the
// same profile, and malformed input falls back to the default rather than
// erroring.
package locale

import (
	"net/url"
	"strings"

	"github.com/nullwave7/gatescout/api/schemas"
)

// queryKeys are the query parameters that may carry an explicit locale.
var queryKeys = []string{"lang", "locale", "language"}

// Resolve picks the locale profile for the given shop URL. Signals are tried
// in order of how deliberate they are:
//
//  1. an explicit lang/locale query parameter,
//  2. a locale-shaped first path segment (/fr/..., /en-gb/...),
//  3. a locale-shaped host subdomain (fr.example.com),
//  4. the country TLD (.fr, .dk, ...).
//
// Anything unrecognized, including URLs that do not parse, resolves to the
// default profile.
func Resolve(rawURL string) schemas.LocaleProfile {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return Default()
	}

	q := u.Query()
	for _, key := range queryKeys {
		if p, ok := lookup(q.Get(key)); ok {
			return p
		}
	}

	if seg := firstPathSegment(u.EscapedPath()); seg != "" {
		if p, ok := lookup(seg); ok {
			return p
		}
	}

	host := strings.ToLower(u.Hostname())
	if prefix, rest, found := strings.Cut(host, "."); found && rest != "" {
		if p, ok := lookup(prefix); ok {
			return p
		}
	}

	if idx := strings.LastIndex(host, "."); idx >= 0 {
		if p, ok := lookup(host[idx+1:]); ok {
			return p
		}
	}

	return Default()
}

// lookup normalizes a candidate token and resolves it against the profile
// table. Tokens must be locale shaped: "xx" or "xx-YY" (underscore accepted),
// so path segments like "no-reply" never match the Norwegian profile.
func lookup(token string) (schemas.LocaleProfile, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	switch {
	case len(token) == 2:
	case len(token) == 5 && (token[2] == '-' || token[2] == '_'):
		token = token[:2]
	default:
		return schemas.LocaleProfile{}, false
	}
	if !isAlpha(token) {
		return schemas.LocaleProfile{}, false
	}
	if canonical, ok := aliases[token]; ok {
		token = canonical
	}
	p, ok := profiles[token]
	return p, ok
}

func firstPathSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
