package httpmw

import (
	"net/http"

	"github.com/shieldkit/shieldkit/authn"
)

func hasAny(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func hasAll(have, want []string) bool {
	haveSet := make(map[string]struct{}, len(have))
	for _, h := range have {
		haveSet[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := haveSet[w]; !ok {
			return false
		}
	}
	return true
}

// RequireRoles rejects any request whose authenticated Identity (set by
// Auth earlier in the chain) holds none of requiredRoles. A request
// with no Identity at all is rejected with 401; one with an Identity
// but insufficient roles is rejected with 403.
func RequireRoles(requiredRoles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authn.IdentityFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			if !hasAny(identity.Roles, requiredRoles) {
				writeJSONError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermissions rejects any request whose authenticated Identity
// lacks any of requiredPermissions (all, not any, must be present). Same 401/403 split as RequireRoles.
func RequirePermissions(requiredPermissions ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authn.IdentityFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			if !hasAll(identity.Permissions, requiredPermissions) {
				writeJSONError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
