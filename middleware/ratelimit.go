package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/upb/tenant-platform/services"
	"github.com/upb/tenant-platform/services/ratelimit"
	"github.com/upb/tenant-platform/utils"
	"go.uber.org/zap"
)

// RateLimit rejects clients whose token bucket is empty with 429
func RateLimit(limiter *ratelimit.RateLimitService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			result := limiter.Allow(ip)
			if !result.Allowed {
				logger.Warn("rate limit exceeded",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("ip", ip),
					zap.String("route", RoutePattern(r)))
				if result.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
				}
				_ = utils.WriteTooManyRequests(w, services.GetErrorMessage(services.ErrRateLimitExceeded))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
