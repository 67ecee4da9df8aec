package apikey

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/greetings/pkg/auth"
)

func newTestAuth(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New([]Entry{
		{Key: "gk-alice", Identity: auth.Identity{Subject: "alice", ServiceTier: "standard", Tenant: "org-1"}},
		{Key: "gk-bob", Identity: auth.Identity{Subject: "bob", ServiceTier: "premium"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestAuthenticate(t *testing.T) {
	a := newTestAuth(t)

	tests := []struct {
		name    string
		headers map[string]string
		want    auth.Decision
		subject string
	}{
		{"no credentials", nil, auth.Abstain, ""},
		{"basic auth", map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, auth.Abstain, ""},
		{"jwt shaped bearer", map[string]string{"Authorization": "Bearer aaa.bbb.ccc"}, auth.Abstain, ""},
		{"bearer first key", map[string]string{"Authorization": "Bearer gk-alice"}, auth.Yes, "alice"},
		{"bearer second key", map[string]string{"Authorization": "Bearer gk-bob"}, auth.Yes, "bob"},
		{"header key", map[string]string{HeaderName: "gk-alice"}, auth.Yes, "alice"},
		{"header key padded", map[string]string{HeaderName: "  gk-bob "}, auth.Yes, "bob"},
		{"header wins over bearer", map[string]string{HeaderName: "gk-bob", "Authorization": "Bearer gk-alice"}, auth.Yes, "bob"},
		{"unknown bearer", map[string]string{"Authorization": "Bearer gk-mallory"}, auth.No, ""},
		{"unknown header", map[string]string{HeaderName: "gk-mallory"}, auth.No, ""},
		{"blank bearer", map[string]string{"Authorization": "Bearer "}, auth.No, ""},
		{"blank header", map[string]string{HeaderName: ""}, auth.No, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/greetings/history", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			res := a.Authenticate(context.Background(), r)
			if res.Decision != tt.want {
				t.Fatalf("decision = %s, want %s", res.Decision, tt.want)
			}
			if tt.want == auth.No && res.Err != auth.ErrUnauthenticated {
				t.Errorf("err = %v, want ErrUnauthenticated", res.Err)
			}
			if tt.subject != "" && res.Identity.Subject != tt.subject {
				t.Errorf("subject = %q, want %q", res.Identity.Subject, tt.subject)
			}
		})
	}
}

func TestIdentityCarriesTierAndTenant(t *testing.T) {
	a := newTestAuth(t)
	r := httptest.NewRequest("GET", "/greetings/history", nil)
	r.Header.Set(HeaderName, "gk-alice")

	id := a.Authenticate(context.Background(), r).Identity
	if id.ServiceTier != "standard" || id.Tenant != "org-1" {
		t.Errorf("identity = %+v", id)
	}
}

func TestReturnedIdentityIsACopy(t *testing.T) {
	a := newTestAuth(t)
	r := httptest.NewRequest("GET", "/greetings/history", nil)
	r.Header.Set(HeaderName, "gk-bob")

	a.Authenticate(context.Background(), r).Identity.Subject = "mallory"
	if got := a.Authenticate(context.Background(), r).Identity.Subject; got != "bob" {
		t.Errorf("subject = %q after mutating an earlier result, want bob", got)
	}
}

func TestNewRejectsBadKeySets(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{"none", nil, "no api keys"},
		{"empty key", []Entry{{Key: "", Identity: auth.Identity{Subject: "x"}}}, "empty key"},
		{"duplicate", []Entry{
			{Key: "gk-same", Identity: auth.Identity{Subject: "a"}},
			{Key: "gk-same", Identity: auth.Identity{Subject: "b"}},
		}, "same key as entry 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
