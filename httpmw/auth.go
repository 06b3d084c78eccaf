package httpmw

import (
	"errors"
	"net/http"

	"github.com/shieldkit/shieldkit/authn"
	"github.com/shieldkit/shieldkit/internal/ctxkeys"
)

// Auth authenticates each request via provider, injecting the resulting
// Identity into the request context (readable via authn.IdentityFromContext
// or the internal/ctxkeys accessors). Requests whose path is in skipPaths
// bypass authentication entirely. Failures wrapping
// authn.ErrUnauthenticated return 401; any other provider error returns
// 500.
func Auth(provider authn.Provider, skipPaths []string) Middleware {
	skipSet := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skipSet[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := skipSet[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := provider.Authenticate(r)
			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, authn.ErrUnauthenticated) {
					status = http.StatusInternalServerError
				}
				writeJSONError(w, status, "unauthorized", "invalid or missing credentials")
				return
			}

			ctx := authn.WithIdentity(r.Context(), identity)
			ctx = ctxkeys.WithUserID(ctx, identity.UserID)
			ctx = ctxkeys.WithTenantID(ctx, identity.TenantID)
			if len(identity.Roles) > 0 {
				ctx = ctxkeys.WithRoles(ctx, identity.Roles)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
