package httpmw

import (
	"net"
	"net/http"

	"github.com/shieldkit/shieldkit/ratelimit"
)

// KeyFunc extracts the rate-limit key (e.g. client IP, tenant ID, API
// key) from a request.
type KeyFunc func(r *http.Request) string

// ClientIP extracts the caller's IP from RemoteAddr, falling back to the
// raw value if it isn't a host:port pair.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit enforces limiter against the key keyFn extracts from each
// request, setting X-RateLimit-* headers on every response and returning
// 429 with Retry-After when denied.
func RateLimit(limiter *ratelimit.Limiter, keyFn KeyFunc) Middleware {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Check(r.Context(), keyFn(r))
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "rate_limit_error", "rate limit check failed")
				return
			}
			headers := ratelimit.Headers(result)
			for k, v := range headers {
				w.Header()[k] = v
			}
			if !result.Allowed {
				writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TierFunc extracts the rate-limit tier (e.g. plan name) for a request.
type TierFunc func(r *http.Request) string

// TenantRateLimit enforces a TieredLimiter, looking up both the tier and
// the key per request so different tenants/plans never share counters.
func TenantRateLimit(limiter *ratelimit.TieredLimiter, tierFn TierFunc, keyFn KeyFunc) Middleware {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Check(r.Context(), tierFn(r), keyFn(r))
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "rate_limit_error", "rate limit check failed")
				return
			}
			headers := ratelimit.Headers(result)
			for k, v := range headers {
				w.Header()[k] = v
			}
			if !result.Allowed {
				writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EndpointRateLimit enforces an EndpointLimiter, which picks the
// applicable rule by request path.
func EndpointRateLimit(limiter *ratelimit.EndpointLimiter, keyFn KeyFunc) Middleware {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Check(r.Context(), r.URL.Path, keyFn(r))
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "rate_limit_error", "rate limit check failed")
				return
			}
			headers := ratelimit.Headers(result)
			for k, v := range headers {
				w.Header()[k] = v
			}
			if !result.Allowed {
				writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
