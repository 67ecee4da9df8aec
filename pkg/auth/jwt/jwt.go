// Package jwt authenticates callers by HMAC-signed bearer tokens. Issuer
// and audience checks are optional; the claims carrying subject, tenant,
// tier and scopes are configurable.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/greetings/pkg/auth"
	"github.com/rhuss/greetings/pkg/debug"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HMAC key tokens are signed with. Required.
	Secret []byte

	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty, audience is not validated.
	Audience string

	// UserClaim is the JWT claim used as the identity subject. Default: "sub".
	UserClaim string

	// TenantClaim is the JWT claim scoping the caller's greeting history. Default: "tenant_id".
	TenantClaim string

	// TierClaim is the JWT claim used as the service tier. Default: "tier".
	TierClaim string

	// ScopesClaim is the JWT claim used for authorization scopes. Default: "scope".
	// The value can be a space-separated string or a JSON array.
	ScopesClaim string

	// Leeway is the clock skew tolerated on exp/nbf/iat. Default: 0.
	Leeway time.Duration
}

// applyDefaults fills in zero-value claim names.
func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// Authenticator validates HMAC-signed JWT bearer tokens.
type Authenticator struct {
	config Config
	parser *jwtlib.Parser
}

// New creates a JWT authenticator. It returns an error if no secret is set.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret is required")
	}
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(cfg.Leeway))
	}

	return &Authenticator{config: cfg, parser: jwtlib.NewParser(opts...)}, nil
}

// Authenticate abstains without a bearer token, votes No for a token
// that fails verification and Yes otherwise.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	id, err := a.verify(strings.TrimSpace(raw))
	if err != nil {
		debug.Log("auth", "bearer token rejected", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: err}
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}

// verify checks signature and registered claims, then maps the configured
// claims onto an Identity.
func (a *Authenticator) verify(raw string) (*auth.Identity, error) {
	if raw == "" {
		return nil, errors.New("empty bearer token")
	}
	claims := jwtlib.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.key); err != nil {
		return nil, fmt.Errorf("invalid JWT: %w", err)
	}

	c := a.config
	subject, _ := claims[c.UserClaim].(string)
	if subject == "" {
		return nil, fmt.Errorf("JWT missing %q claim", c.UserClaim)
	}
	tier, _ := claims[c.TierClaim].(string)
	tenant, _ := claims[c.TenantClaim].(string)
	return &auth.Identity{
		Subject:     subject,
		ServiceTier: tier,
		Tenant:      tenant,
		Scopes:      extractScopes(claims, c.ScopesClaim),
	}, nil
}

func (a *Authenticator) key(*jwtlib.Token) (any, error) {
	return a.config.Secret, nil
}

// extractScopes reads a scope claim given either as a space separated
// string or as an array of strings.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if f := strings.Fields(v); len(f) > 0 {
			return f
		}
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
