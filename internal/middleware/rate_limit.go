package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/response"
)

// RateLimit rejects callers that exceed limiter within scope with a 429 envelope.
func RateLimit(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow(scope+":"+clientIP(r)) {
				response.Error(r.Context(), w, apperr.TooManyRequests("Too many requests, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys on RemoteAddr, which chi's RealIP rewrites only when the
// router is configured to trust proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
