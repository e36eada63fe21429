package license

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Resolver computes the set of currently active licensed features for a
// tenant. It is read-only and safe for concurrent use.
type Resolver struct {
	grants GrantStore
	now    func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock injects the time source used for grant window checks.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a Resolver over the given grant store.
func NewResolver(grants GrantStore, opts ...ResolverOption) *Resolver {
	if grants == nil {
		panic("license: grant store is required")
	}

	r := &Resolver{grants: grants, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ActiveFeatures returns the sorted feature codes with a live grant for
// the tenant. A tenant with no grants yields an empty set, not an error.
func (r *Resolver) ActiveFeatures(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	grants, err := r.grants.ListGrants(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	now := r.now()
	var out []string
	for _, g := range grants {
		if g.Active(now) {
			out = append(out, g.Feature)
		}
	}
	slices.Sort(out)
	return out, nil
}

// HasFeature reports whether the tenant holds an active grant for the
// feature.
func (r *Resolver) HasFeature(ctx context.Context, tenantID uuid.UUID, feature string) (bool, error) {
	grant, err := r.grants.GetGrant(ctx, tenantID, feature)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get grant: %w", err)
	}
	return grant.Active(r.now()), nil
}
