// Package apikey authenticates callers by static API keys.
//
// A key is read from the X-API-Key header, or from a bearer token that is
// not shaped like a JWT. Only SHA-256 digests of the keys are kept.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhuss/greetings/pkg/auth"
)

// HeaderName is the dedicated API key header.
const HeaderName = "X-API-Key"

// Entry binds a plaintext key to the identity it authenticates.
type Entry struct {
	Key      string
	Identity auth.Identity
}

type hashedKey struct {
	digest   [sha256.Size]byte
	identity auth.Identity
}

// Authenticator matches presented keys against a fixed key set.
type Authenticator struct {
	keys []hashedKey
}

// New hashes entries into an Authenticator. Empty and duplicate keys are
// rejected.
func New(entries []Entry) (*Authenticator, error) {
	a := &Authenticator{keys: make([]hashedKey, 0, len(entries))}
	seen := make(map[[sha256.Size]byte]int, len(entries))
	for i, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("api key %d: empty key", i)
		}
		d := sha256.Sum256([]byte(e.Key))
		if j, dup := seen[d]; dup {
			return nil, fmt.Errorf("api key %d: same key as entry %d", i, j)
		}
		seen[d] = i
		a.keys = append(a.keys, hashedKey{digest: d, identity: e.Identity})
	}
	if len(a.keys) == 0 {
		return nil, errors.New("no api keys configured")
	}
	return a, nil
}

// Authenticate votes Yes for a known key, No for an unknown or blank key,
// and abstains when the request carries no key.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	key, presented := presentedKey(r)
	if !presented {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if id, ok := a.lookup(key); ok {
		return auth.AuthResult{Decision: auth.Yes, Identity: id}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

// lookup compares against every entry so the time taken does not depend
// on which entry matched.
func (a *Authenticator) lookup(key string) (*auth.Identity, bool) {
	if key == "" {
		return nil, false
	}
	d := sha256.Sum256([]byte(key))
	match := -1
	for i := range a.keys {
		if subtle.ConstantTimeCompare(d[:], a.keys[i].digest[:]) == 1 {
			match = i
		}
	}
	if match < 0 {
		return nil, false
	}
	id := a.keys[match].identity
	return &id, true
}

func presentedKey(r *http.Request) (string, bool) {
	if v := r.Header.Values(HeaderName); len(v) > 0 {
		return strings.TrimSpace(v[0]), true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") == 2 {
		return "", false
	}
	return token, true
}
