// Package authn implements the request-authentication strategies
// httpmw.Auth delegates to: API keys, bearer JWTs (HS256/RS256), and
// cached OAuth2 token introspection. Issuing tokens is out of scope —
// these providers only verify credentials presented on inbound requests.
package authn

import (
	"context"
	"errors"
	"net/http"
)

// ErrUnauthenticated is returned when a request carries no usable
// credential, or the credential fails verification.
var ErrUnauthenticated = errors.New("authn: unauthenticated")

// Identity is the verified caller extracted from a request.
type Identity struct {
	UserID      string
	TenantID    string
	Email       string
	Roles       []string
	Permissions []string
}

// Provider authenticates one inbound request.
type Provider interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// Chain tries each Provider in order, returning the first successful
// Identity. If every provider fails, it returns the last provider's
// error.
type Chain []Provider

// Authenticate implements Provider by delegating to the chain in order.
func (c Chain) Authenticate(r *http.Request) (*Identity, error) {
	var lastErr error = ErrUnauthenticated
	for _, p := range c {
		identity, err := p.Authenticate(r)
		if err == nil {
			return identity, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

type identityContextKey struct{}

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext reads the Identity set by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	return v, ok
}
