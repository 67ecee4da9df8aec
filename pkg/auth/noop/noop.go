// Package noop provides the authenticator used when authentication is
// disabled. It accepts every request as an anonymous caller, keyed by the
// client address so that per-caller rate limits still apply.
package noop

import (
	"context"
	"net"
	"net/http"

	"github.com/rhuss/greetings/pkg/auth"
)

// Authenticator votes Yes for every request.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	id := auth.Anonymous()
	if host := clientHost(r); host != "" {
		id.Subject += "@" + host
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
