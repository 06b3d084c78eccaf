package authn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/cache"
)

// IntrospectionResponse is the subset of RFC 7662 introspection fields
// this provider reads.
type IntrospectionResponse struct {
	Active      bool     `json:"active"`
	Subject     string   `json:"sub"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Scope       string   `json:"scope"`
	TenantID    string   `json:"tenant_id"`
	Permissions []string `json:"permissions"`
}

// OAuth2Config configures an OAuth2IntrospectionProvider.
type OAuth2Config struct {
	IntrospectionURL string
	ClientID         string
	ClientSecret     string
	CacheTTL         time.Duration // how long a verdict is cached; default 60s
	HTTPTimeout      time.Duration // default 5s
}

// OAuth2IntrospectionProvider authenticates bearer tokens via RFC 7662
// token introspection against an authorization server. Because
// introspection is a network round trip, verdicts are cached by token
// for CacheTTL to avoid paying that cost on every request.
type OAuth2IntrospectionProvider struct {
	cfg    OAuth2Config
	client *http.Client
	cache  cache.Backend
	logger *zap.Logger
}

// NewOAuth2IntrospectionProvider creates an OAuth2IntrospectionProvider.
// resultCache may be nil to disable caching.
func NewOAuth2IntrospectionProvider(cfg OAuth2Config, resultCache cache.Backend, logger *zap.Logger) *OAuth2IntrospectionProvider {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuth2IntrospectionProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		cache:  resultCache,
		logger: logger,
	}
}

func (p *OAuth2IntrospectionProvider) Authenticate(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, ErrUnauthenticated
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return nil, ErrUnauthenticated
	}

	ctx := r.Context()
	cacheKey := "authn:oauth2:" + token

	if p.cache != nil {
		if data, err := p.cache.Get(ctx, cacheKey); err == nil {
			var resp IntrospectionResponse
			if json.Unmarshal(data, &resp) == nil {
				return identityFromIntrospection(resp)
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			p.logger.Debug("authn: oauth2 cache read failed", zap.Error(err))
		}
	}

	resp, err := p.introspect(ctx, token)
	if err != nil {
		p.logger.Debug("authn: oauth2 introspection failed", zap.Error(err))
		return nil, ErrUnauthenticated
	}

	if p.cache != nil {
		if data, encErr := json.Marshal(resp); encErr == nil {
			if setErr := p.cache.Set(ctx, cacheKey, data, p.cfg.CacheTTL); setErr != nil {
				p.logger.Debug("authn: oauth2 cache write failed", zap.Error(setErr))
			}
		}
	}

	return identityFromIntrospection(resp)
}

func (p *OAuth2IntrospectionProvider) introspect(ctx context.Context, token string) (IntrospectionResponse, error) {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.IntrospectionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return IntrospectionResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return IntrospectionResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return IntrospectionResponse{}, errors.New("authn: introspection endpoint returned non-200")
	}

	var out IntrospectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return IntrospectionResponse{}, err
	}
	return out, nil
}

func identityFromIntrospection(resp IntrospectionResponse) (*Identity, error) {
	if !resp.Active {
		return nil, ErrUnauthenticated
	}
	identity := &Identity{
		UserID:      resp.Subject,
		TenantID:    resp.TenantID,
		Email:       resp.Email,
		Permissions: resp.Permissions,
	}
	if identity.UserID == "" {
		identity.UserID = resp.Username
	}
	if resp.Scope != "" {
		identity.Roles = strings.Fields(resp.Scope)
	}
	return identity, nil
}
