package authn

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTConfig configures a JWTProvider.
type JWTConfig struct {
	Secret    string // HS256 shared secret
	PublicKey string // PEM-encoded RSA public key, for RS256
	Issuer    string
	Audience  string
	Leeway    time.Duration // clock-skew tolerance applied to exp/iat
}

// JWTProvider authenticates requests carrying a Bearer JWT, verified via
// HMAC (HS256) or RSA (RS256).
type JWTProvider struct {
	hmacSecret []byte
	rsaKey     *rsa.PublicKey
	parserOpts []jwt.ParserOption
	logger     *zap.Logger
}

// NewJWTProvider creates a JWTProvider from cfg.
func NewJWTProvider(cfg JWTConfig, logger *zap.Logger) *JWTProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &JWTProvider{hmacSecret: []byte(cfg.Secret), logger: logger}

	if cfg.PublicKey != "" {
		block, _ := pem.Decode([]byte(cfg.PublicKey))
		if block != nil {
			if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
				if k, ok := pub.(*rsa.PublicKey); ok {
					p.rsaKey = k
				}
			}
		}
		if p.rsaKey == nil {
			logger.Warn("authn: failed to parse RSA public key, RS256 verification disabled")
		}
	}

	p.parserOpts = []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "RS256"})}
	if cfg.Issuer != "" {
		p.parserOpts = append(p.parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		p.parserOpts = append(p.parserOpts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		p.parserOpts = append(p.parserOpts, jwt.WithLeeway(cfg.Leeway))
	}
	return p
}

func (p *JWTProvider) keyFunc(token *jwt.Token) (any, error) {
	switch token.Method.Alg() {
	case "HS256":
		if len(p.hmacSecret) == 0 {
			return nil, fmt.Errorf("authn: HMAC secret not configured")
		}
		return p.hmacSecret, nil
	case "RS256":
		if p.rsaKey == nil {
			return nil, fmt.Errorf("authn: RSA public key not configured")
		}
		return p.rsaKey, nil
	default:
		return nil, fmt.Errorf("authn: unexpected signing method %s", token.Method.Alg())
	}
}

func (p *JWTProvider) Authenticate(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, ErrUnauthenticated
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenStr, p.keyFunc, p.parserOpts...)
	if err != nil {
		p.logger.Debug("authn: jwt validation failed", zap.Error(err))
		return nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrUnauthenticated
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrUnauthenticated
	}

	identity := &Identity{UserID: sub}
	if tenantID, ok := claims["tenant_id"].(string); ok {
		identity.TenantID = tenantID
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	identity.Roles = stringSliceClaim(claims, "roles")
	identity.Permissions = stringSliceClaim(claims, "permissions")
	return identity, nil
}

func stringSliceClaim(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
