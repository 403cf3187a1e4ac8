package ratelimit

import (
	"net/http"
	"strings"
)

// ClientKey derives the per-caller counter key from request headers. The key
// is "<ip>:<user-agent>"; the user agent part may be empty. It always returns
// a non-empty string.
func ClientKey(r *http.Request) string {
	return ClientIP(r) + ":" + r.Header.Get("User-Agent")
}

// ClientIP extracts the client IP from proxy headers, checking
// X-Forwarded-For first, then X-Real-IP. Requests that arrive without either
// header are keyed as "unknown"; a reverse proxy is expected in front of
// this service.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return "unknown"
}
