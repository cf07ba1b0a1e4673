package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/internal/observability"
	"github.com/garagehq/workshop-platform/ratelimit"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/utils"
)

// RateLimit bounds request volume per (client address, tenant) pair.
// Runs independently of identity: the key is the caller's address plus
// the route's tenant slug, or "global" outside tenant scope. Per-route
// overrides are expressed by passing a differently-budgeted limiter.
func RateLimit(limiter *ratelimit.Limiter, metrics *observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := "global"
			if tc := GetTenantFromContext(r.Context()); tc != nil {
				scope = tc.Tenant.Slug
			}
			key := clientAddress(r) + ":" + scope

			res := limiter.Allow(key)
			utils.SetRateLimitHeaders(w, res.Remaining, res.ResetAt.Unix())

			if !res.Allowed {
				metrics.RecordRateLimited()
				logger.Warn("rate limit exceeded",
					zap.String("key", key),
					zap.Duration("retry_after", res.RetryAfter))
				retryAfter := int(res.RetryAfter.Seconds() + 0.5)
				_ = utils.WriteDomainError(w, services.ErrRateLimited.WithDetail("retryAfter", retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddress returns the caller's address without the ephemeral port
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
