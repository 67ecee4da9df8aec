package auth

import (
	"context"

	"github.com/rhuss/greetings/pkg/storage"
)

type identityKey struct{}

// WithIdentity returns a context carrying id. When the identity names a
// tenant, the context is also scoped to that tenant for storage access.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, id)
	if id != nil && id.Tenant != "" {
		ctx = storage.SetTenant(ctx, id.Tenant)
	}
	return ctx
}

// IdentityFromContext returns the identity set by WithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
