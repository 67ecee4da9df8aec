package storage

import "context"

type tenantKey struct{}

// SetTenant scopes history operations on ctx to tenantID. Records saved
// under a tenant are only visible to requests carrying the same tenant.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenant returns the tenant set on ctx, or "" when the request is not
// tenant scoped.
func GetTenant(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantKey{}).(string)
	return tenantID
}

// Visible reports whether a record owned by owner may be read or deleted
// through ctx. Unscoped contexts see every record.
func Visible(ctx context.Context, owner string) bool {
	tenantID := GetTenant(ctx)
	return tenantID == "" || tenantID == owner
}
