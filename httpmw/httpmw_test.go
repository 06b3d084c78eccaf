package httpmw_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldkit/shieldkit/authn"
	"github.com/shieldkit/shieldkit/guardrails"
	"github.com/shieldkit/shieldkit/httpmw"
	"github.com/shieldkit/shieldkit/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain_RunsMiddlewaresOutermostFirst(t *testing.T) {
	var order []string
	mark := func(name string) httpmw.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpmw.Chain(okHandler(), mark("a"), mark("b"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRecovery_ConvertsPanicToJSON500(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := httpmw.Recovery(nil)(panicking)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestCORS_EmptyAllowlistRejectsCrossOrigin(t *testing.T) {
	h := httpmw.CORS(nil)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	h := httpmw.CORS([]string{"https://good.example"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://good.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://good.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID_GeneratesWhenAbsentAndPreservesWhenPresent(t *testing.T) {
	h := httpmw.RequestID()(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, "client-supplied", rec2.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders_SetsConservativeDefaults(t *testing.T) {
	h := httpmw.SecurityHeaders()(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRateLimit_DeniesOverLimitWith429AndHeaders(t *testing.T) {
	backend := ratelimit.NewMemory()
	limiter := ratelimit.NewLimiter(backend, ratelimit.Rule{
		Algorithm: ratelimit.SlidingWindow,
		Limit:     1,
		Window:    time.Minute,
	}, "test")

	h := httpmw.RateLimit(limiter, func(r *http.Request) string { return "fixed-key" })(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.NotEmpty(t, rec2.Header().Get("Retry-After"))
}

func TestAuth_SkipsConfiguredPaths(t *testing.T) {
	provider := authn.NewAPIKeyProvider("", map[string]authn.Identity{}, false)
	h := httpmw.Auth(provider, []string{"/health"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_RejectsMissingCredentialWith401(t *testing.T) {
	provider := authn.NewAPIKeyProvider("", map[string]authn.Identity{}, false)
	h := httpmw.Auth(provider, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InjectsIdentityIntoContext(t *testing.T) {
	provider := authn.NewAPIKeyProvider("", map[string]authn.Identity{
		"key-1": {UserID: "u1", TenantID: "t1"},
	}, false)

	var gotUserID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authn.IdentityFromContext(r.Context())
		require.True(t, ok)
		gotUserID = identity.UserID
		w.WriteHeader(http.StatusOK)
	})
	h := httpmw.Auth(provider, nil)(inner)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "key-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gotUserID)
}

func withIdentity(r *http.Request, identity *authn.Identity) *http.Request {
	return r.WithContext(authn.WithIdentity(r.Context(), identity))
}

func TestRequireRoles_RejectsUnauthenticatedRequestWith401(t *testing.T) {
	h := httpmw.RequireRoles("admin")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles_RejectsMissingRoleWith403(t *testing.T) {
	h := httpmw.RequireRoles("admin")(okHandler())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil), &authn.Identity{UserID: "u1", Roles: []string{"viewer"}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoles_AllowsMatchingRole(t *testing.T) {
	h := httpmw.RequireRoles("admin", "superadmin")(okHandler())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil), &authn.Identity{UserID: "u1", Roles: []string{"admin"}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermissions_RequiresAllListedPermissions(t *testing.T) {
	h := httpmw.RequirePermissions("write:data", "read:data")(okHandler())

	partial := withIdentity(httptest.NewRequest(http.MethodPost, "/data", nil), &authn.Identity{UserID: "u1", Permissions: []string{"read:data"}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, partial)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	full := withIdentity(httptest.NewRequest(http.MethodPost, "/data", nil), &authn.Identity{UserID: "u1", Permissions: []string{"read:data", "write:data"}})
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, full)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestGuardrails_RejectsFlaggedContentWith400(t *testing.T) {
	chain := guardrails.NewChain(guardrails.ChainModeCollectAll)
	chain.Add(guardrails.NewContentChainValidator(guardrails.NewValidator(guardrails.DefaultValidatorConfig(), nil)))

	extract := func(r *http.Request) (string, error) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	h := httpmw.Guardrails(chain, extract)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("<script>alert(1)</script>"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGuardrails_AllowsCleanContent(t *testing.T) {
	chain := guardrails.NewChain(guardrails.ChainModeCollectAll)
	chain.Add(guardrails.NewContentChainValidator(guardrails.NewValidator(guardrails.DefaultValidatorConfig(), nil)))

	extract := func(r *http.Request) (string, error) {
		b, err := io.ReadAll(r.Body)
		return string(b), err
	}
	h := httpmw.Guardrails(chain, extract)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello there"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
