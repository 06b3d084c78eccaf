package authn

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// APIKeyProvider authenticates requests carrying a static API key, either
// in a header (default X-API-Key) or, optionally, a query parameter. Keys
// may be registered as raw strings or as SHA-256 hex digests; the
// provider tries the raw value first, then its digest, so callers can
// store only hashes at rest without changing the credential the client
// presents.
type APIKeyProvider struct {
	header          string
	keys            map[string]Identity
	allowQueryParam bool
}

// NewAPIKeyProvider creates an APIKeyProvider. keys maps a valid API key
// (or the SHA-256 hex digest of one) to the Identity it authenticates as.
// An empty header defaults to X-API-Key.
func NewAPIKeyProvider(header string, keys map[string]Identity, allowQueryParam bool) *APIKeyProvider {
	if header == "" {
		header = "X-API-Key"
	}
	return &APIKeyProvider{header: header, keys: keys, allowQueryParam: allowQueryParam}
}

func (p *APIKeyProvider) Authenticate(r *http.Request) (*Identity, error) {
	key := r.Header.Get(p.header)
	if key == "" && p.allowQueryParam {
		key = r.URL.Query().Get("api_key")
	}
	if key == "" {
		return nil, ErrUnauthenticated
	}

	if identity, ok := p.keys[key]; ok {
		out := identity
		return &out, nil
	}

	digest := sha256Hex(key)
	if identity, ok := p.keys[digest]; ok {
		out := identity
		return &out, nil
	}

	return nil, ErrUnauthenticated
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
