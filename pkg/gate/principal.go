package gate

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated actor being evaluated. A zero UserID
// means the request is anonymous.
type Principal struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
}

// Authenticated reports whether a user identity is present.
func (p Principal) Authenticated() bool {
	return p.UserID != uuid.Nil
}

type principalCtxKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext retrieves the principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}
