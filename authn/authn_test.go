package authn_test

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldkit/shieldkit/authn"
	"github.com/shieldkit/shieldkit/cache"
)

func TestAPIKeyProvider_MatchesRawKey(t *testing.T) {
	p := authn.NewAPIKeyProvider("", map[string]authn.Identity{
		"secret-123": {UserID: "u1", TenantID: "t1"},
	}, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "secret-123")

	identity, err := p.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
}

func TestAPIKeyProvider_MatchesSHA256Digest(t *testing.T) {
	sum := sha256.Sum256([]byte("secret-123"))
	digest := hex.EncodeToString(sum[:])
	p := authn.NewAPIKeyProvider("", map[string]authn.Identity{
		digest: {UserID: "u2"},
	}, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "secret-123")

	identity, err := p.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "u2", identity.UserID)
}

func TestAPIKeyProvider_QueryParamOnlyWhenAllowed(t *testing.T) {
	p := authn.NewAPIKeyProvider("", map[string]authn.Identity{"k": {UserID: "u3"}}, true)

	req := httptest.NewRequest(http.MethodGet, "/?api_key=k", nil)
	identity, err := p.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "u3", identity.UserID)

	strict := authn.NewAPIKeyProvider("", map[string]authn.Identity{"k": {UserID: "u3"}}, false)
	_, err = strict.Authenticate(req)
	assert.ErrorIs(t, err, authn.ErrUnauthenticated)
}

func TestJWTProvider_ValidHS256TokenYieldsIdentity(t *testing.T) {
	secret := "test-secret"
	p := authn.NewJWTProvider(authn.JWTConfig{Secret: secret}, nil)

	claims := jwt.MapClaims{
		"sub":         "user-42",
		"tenant_id":   "tenant-7",
		"email":       "u@example.com",
		"roles":       []any{"admin", "reader"},
		"permissions": []any{"read:docs"},
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	identity, err := p.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.UserID)
	assert.Equal(t, "tenant-7", identity.TenantID)
	assert.Equal(t, "u@example.com", identity.Email)
	assert.ElementsMatch(t, []string{"admin", "reader"}, identity.Roles)
	assert.ElementsMatch(t, []string{"read:docs"}, identity.Permissions)
}

func TestJWTProvider_RejectsExpiredToken(t *testing.T) {
	secret := "test-secret"
	p := authn.NewJWTProvider(authn.JWTConfig{Secret: secret}, nil)

	claims := jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(secret))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	_, err := p.Authenticate(req)
	assert.ErrorIs(t, err, authn.ErrUnauthenticated)
}

func TestJWTProvider_RejectsTokenSignedWithDifferentSecret(t *testing.T) {
	p := authn.NewJWTProvider(authn.JWTConfig{Secret: "s1"}, nil)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, _ := other.SignedString([]byte("different-secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	_, err := p.Authenticate(req)
	assert.ErrorIs(t, err, authn.ErrUnauthenticated)
}

func TestIAPProvider_ValidatesIssuerAndAudienceLocally(t *testing.T) {
	p := authn.NewIAPProvider(authn.IAPConfig{Issuer: "https://cloud.google.com/iap", Audience: "my-aud"}, nil)

	claims := jwt.MapClaims{
		"sub": "iap-user",
		"iss": "https://cloud.google.com/iap",
		"aud": "my-aud",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte("unused-iap-delegates-signature-verification"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(authn.IAPHeader, signed)

	identity, err := p.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "iap-user", identity.UserID)
}

func TestIAPProvider_RejectsMismatchedAudience(t *testing.T) {
	p := authn.NewIAPProvider(authn.IAPConfig{Audience: "expected-aud"}, nil)

	claims := jwt.MapClaims{"sub": "iap-user", "aud": "wrong-aud"}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte("irrelevant"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(authn.IAPHeader, signed)

	_, err := p.Authenticate(req)
	assert.ErrorIs(t, err, authn.ErrUnauthenticated)
}

func TestOAuth2IntrospectionProvider_ActiveTokenYieldsIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authn.IntrospectionResponse{
			Active: true,
			Subject: "introspected-user",
			Scope:   "read write",
		})
	}))
	defer srv.Close()

	p := authn.NewOAuth2IntrospectionProvider(authn.OAuth2Config{
		IntrospectionURL: srv.URL,
		ClientID:         "client",
		ClientSecret:     "secret",
	}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-token")

	identity, err := p.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "introspected-user", identity.UserID)
	assert.ElementsMatch(t, []string{"read", "write"}, identity.Roles)
}

func TestOAuth2IntrospectionProvider_InactiveTokenIsUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authn.IntrospectionResponse{Active: false})
	}))
	defer srv.Close()

	p := authn.NewOAuth2IntrospectionProvider(authn.OAuth2Config{IntrospectionURL: srv.URL}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-token")

	_, err := p.Authenticate(req)
	assert.ErrorIs(t, err, authn.ErrUnauthenticated)
}

func TestOAuth2IntrospectionProvider_CachesVerdictAcrossCalls(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(authn.IntrospectionResponse{Active: true, Subject: "cached-user"})
	}))
	defer srv.Close()

	resultCache := cache.NewMemory("oauth2-test", 100, nil, nil)
	p := authn.NewOAuth2IntrospectionProvider(authn.OAuth2Config{IntrospectionURL: srv.URL}, resultCache, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer cached-token")

	_, err := p.Authenticate(req)
	require.NoError(t, err)
	_, err = p.Authenticate(req)
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
}

func TestChain_TriesEachProviderInOrderAndReturnsFirstSuccess(t *testing.T) {
	failing := authn.NewAPIKeyProvider("", map[string]authn.Identity{"only-this-key": {UserID: "x"}}, false)
	succeeding := authn.NewAPIKeyProvider("", map[string]authn.Identity{"other-key": {UserID: "chained-user"}}, false)
	chain := authn.Chain{failing, succeeding}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "other-key")

	identity, err := chain.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "chained-user", identity.UserID)
}

func TestChain_AllFailReturnsUnauthenticated(t *testing.T) {
	a := authn.NewAPIKeyProvider("", map[string]authn.Identity{"a": {UserID: "a"}}, false)
	b := authn.NewAPIKeyProvider("", map[string]authn.Identity{"b": {UserID: "b"}}, false)
	chain := authn.Chain{a, b}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "nope")

	_, err := chain.Authenticate(req)
	assert.ErrorIs(t, err, authn.ErrUnauthenticated)
}

func TestWithIdentity_RoundTripsThroughContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	identity := &authn.Identity{UserID: "ctx-user"}

	ctx := authn.WithIdentity(req.Context(), identity)
	got, ok := authn.IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "ctx-user", got.UserID)
}
