package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/greetings/pkg/api"
	"github.com/rhuss/greetings/pkg/debug"
	"github.com/rhuss/greetings/pkg/observability"
	"github.com/rhuss/greetings/pkg/transport"
)

// DefaultBypassEndpoints are served without authentication. The greeting
// page is public; streams and history are not.
var DefaultBypassEndpoints = []string{"/", "/healthz", "/readyz", "/metrics"}

// Guard configures Middleware.
type Guard struct {
	Chain *AuthChain
	// Limiter is optional.
	Limiter RateLimiter
	// Bypass lists exact paths that skip authentication.
	Bypass []string
	// Realm goes into the WWW-Authenticate challenge. Defaults to
	// "greetings".
	Realm string
}

// Middleware authenticates every request not on the bypass list, applies
// the rate limit and hands the identity to next through the request
// context. Rejected requests get a JSON error and never reach next.
func Middleware(g Guard) func(http.Handler) http.Handler {
	bypass := make(map[string]struct{}, len(g.Bypass))
	for _, p := range g.Bypass {
		bypass[p] = struct{}{}
	}
	challenge := `Bearer realm="greetings"`
	if g.Realm != "" {
		challenge = `Bearer realm="` + g.Realm + `"`
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bypass[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			result := g.Chain.Authenticate(r.Context(), r)
			id := result.Identity
			switch {
			case result.Decision != Yes || id == nil:
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"decision", result.Decision.String(),
					"error", result.Err)
				w.Header().Set("WWW-Authenticate", challenge)
				transport.WriteAPIError(w,
					api.NewInvalidRequestError("", "authentication required").WithCode(api.CodeUnauthenticated))
				return
			case id.Subject == "":
				slog.Error("authenticator accepted a request without a subject", "path", r.URL.Path)
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}
			debug.Log("auth", "authenticated",
				"subject", id.Subject, "tier", id.Tier(), "tenant", id.Tenant, "path", r.URL.Path)

			if g.Limiter != nil {
				if err := g.Limiter.Allow(r.Context(), id); err != nil {
					slog.Warn("rate limit exceeded", "subject", id.Subject, "tier", id.Tier())
					observability.RateLimitRejectedTotal.WithLabelValues(id.Tier()).Inc()
					w.Header().Set("Retry-After", "60")
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
