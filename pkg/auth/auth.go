package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision is an authenticator's vote on a request.
type Decision int

const (
	// Yes accepts the request. The chain stops and the identity is used.
	Yes Decision = iota

	// No rejects the request: credentials were presented but are invalid.
	No

	// Abstain leaves the request to the next authenticator, typically
	// because the credentials are not of a kind this authenticator reads.
	Abstain
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// AuthResult carries one authenticator's vote.
type AuthResult struct {
	Decision Decision
	Identity *Identity // set when Decision == Yes
	Err      error     // set when Decision == No
}

// DefaultTier is the rate limit tier of callers without an explicit tier.
const DefaultTier = "default"

// Identity describes the caller of a greeting request.
type Identity struct {
	// Subject names the caller. Never empty for an accepted request.
	Subject string

	// ServiceTier selects the caller's rate limit.
	ServiceTier string

	// Tenant scopes the caller's greeting history. Empty means unscoped.
	Tenant string

	// Scopes lists the scopes granted by the credentials.
	Scopes []string
}

// Anonymous returns the identity used when authentication is disabled.
func Anonymous() *Identity {
	return &Identity{Subject: "anonymous", ServiceTier: DefaultTier}
}

// Tier returns the service tier, falling back to DefaultTier.
func (id *Identity) Tier() string {
	if id == nil || id.ServiceTier == "" {
		return DefaultTier
	}
	return id.ServiceTier
}

// Authenticator votes on the credentials of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain asks its authenticators in order until one votes Yes or No.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains. Yes admits
	// the caller as Anonymous.
	DefaultDecision Decision
}

// Authenticate returns the first non-abstaining vote, or the default.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		if result := authn.Authenticate(ctx, r); result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{Decision: Yes, Identity: Anonymous()}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}
