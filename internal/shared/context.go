package shared

import "context"

// Principal describes the authenticated actor as supplied by the auth
// collaborator: an opaque user id plus a role name.
type Principal struct {
	UserID int64
	Role   string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. The zero value
// means no authenticated actor.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalContextKey{}).(Principal)
	return p
}
