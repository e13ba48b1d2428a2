package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/futureecho/futureecho/internal/metrics"
	"github.com/futureecho/futureecho/internal/ratelimit"
)

// IdentityFunc names the caller a rate limit is charged to.
type IdentityFunc func(r *http.Request) string

// RateLimit enforces limiter for scope. On limiter errors it fails open.
func RateLimit(limiter ratelimit.Limiter, scope string, identify IdentityFunc) func(http.Handler) http.Handler {
	if identify == nil {
		identify = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identify(r)

			d, err := limiter.Allow(r.Context(), scope, id)
			if err != nil {
				slog.Warn("rate limiter: backend error, failing open", "error", err, "scope", scope)
				next.ServeHTTP(w, r)
				return
			}

			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}

			if !d.Allowed {
				metrics.RateLimitedTotal.WithLabelValues(scope).Inc()
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
