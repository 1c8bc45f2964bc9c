package shared

import "context"

// Identity describes the authenticated principal attached to a request.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
	Email    string
}

// User roles embedded in credentials.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleAgent = "agent"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	tenantKey   contextKey = "tenant"
)

// ContextWithIdentity stores the verified identity on the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// ContextWithTenant stores the resolved tenant key on the context.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantFromContext returns the tenant key set by the tenant resolver.
func TenantFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantKey).(string)
	return id, ok && id != ""
}
