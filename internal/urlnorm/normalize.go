// Package urlnorm canonicalizes article URLs so they can serve as dedup keys.
package urlnorm

import (
	"net/url"
	"strings"
)

var trackerParams = map[string]struct{}{
	"gclid":   {},
	"fbclid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"igshid":  {},
	"ref":     {},
	"ref_src": {},
	"_hsenc":  {},
	"_hsmi":   {},
	"mkt_tok": {},
}

// Normalize returns the canonical form of raw. Input that is not an absolute
// http(s)-style URL is returned unchanged.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return raw
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host

	u.Fragment = ""
	u.RawFragment = ""

	// A query with a bad escape is kept verbatim; the other steps still apply.
	if query, err := url.ParseQuery(u.RawQuery); u.RawQuery != "" && err == nil {
		for key := range query {
			if isTrackerParam(key) {
				query.Del(key)
			}
		}
		// Encode sorts by key and keeps each key's value order.
		u.RawQuery = query.Encode()
	}
	u.ForceQuery = false

	// Trailing slashes are trimmed together so a second pass is a no-op.
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.RawPath != "" {
			u.RawPath = strings.TrimRight(u.RawPath, "/")
		}
	}

	return u.String()
}

// Host returns the lower-cased hostname of raw without a leading "www.".
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func isTrackerParam(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackerParams[key]
	return ok
}
