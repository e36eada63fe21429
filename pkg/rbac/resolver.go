package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Resolver computes effective permission sets and role keys for a
// (user, tenant) pair. It is read-only and safe for concurrent use.
type Resolver struct {
	roles       RoleStore
	permissions PermissionStore
	bundles     BundleStore
	assignments AssignmentStore

	superAdminKey string
	now           func() time.Time
	cache         PermissionCache
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock injects the time source used for delegation expiry checks.
// Nil clocks are ignored.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSuperAdminKey overrides the role key carrying the superadmin
// designation.
func WithSuperAdminKey(key string) ResolverOption {
	return func(r *Resolver) {
		if key != "" {
			r.superAdminKey = key
		}
	}
}

// WithPermissionCache attaches a read-through cache for resolved
// permission sets. The deployment pipeline invalidates it on writes.
func WithPermissionCache(cache PermissionCache) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// NewResolver creates a Resolver over the given stores. All four stores
// are required; a single Store implementation may back all of them.
func NewResolver(roles RoleStore, permissions PermissionStore, bundles BundleStore, assignments AssignmentStore, opts ...ResolverOption) *Resolver {
	if roles == nil || permissions == nil || bundles == nil || assignments == nil {
		panic("rbac: all stores are required")
	}

	r := &Resolver{
		roles:         roles,
		permissions:   permissions,
		bundles:       bundles,
		assignments:   assignments,
		superAdminKey: SuperAdminRoleKey,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EffectivePermissions returns the union of permission codes over all
// non-expired role assignments, including codes reached through bundles.
// Superadmin principals receive the global wildcard. Unknown users or
// tenants yield an empty set, not an error.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID, tenantID uuid.UUID) ([]string, error) {
	if r.cache != nil {
		if codes, ok, err := r.cache.Get(ctx, userID, tenantID); err == nil && ok {
			return codes, nil
		}
	}

	activeRoles, err := r.activeRoles(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	var codes []string
	for _, role := range activeRoles {
		if role.IsSystem && role.Key == r.superAdminKey {
			return []string{CodeWildcard}, nil
		}

		perms, err := r.permissions.ListRolePermissions(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("list role permissions: %w", err)
		}
		for _, p := range perms {
			codes = append(codes, p.Code)
		}

		roleBundles, err := r.bundles.ListRoleBundles(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("list role bundles: %w", err)
		}
		for _, b := range roleBundles {
			bundlePerms, err := r.bundles.ListBundlePermissions(ctx, b.ID)
			if err != nil {
				return nil, fmt.Errorf("list bundle permissions: %w", err)
			}
			for _, p := range bundlePerms {
				codes = append(codes, p.Code)
			}
		}
	}

	codes = NormalizeCodes(codes)

	if r.cache != nil {
		_ = r.cache.Set(ctx, userID, tenantID, codes)
	}
	return codes, nil
}

// RoleKeys returns the keys of all non-expired roles assigned to the user
// in the tenant.
func (r *Resolver) RoleKeys(ctx context.Context, userID, tenantID uuid.UUID) ([]string, error) {
	activeRoles, err := r.activeRoles(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(activeRoles))
	for _, role := range activeRoles {
		keys = append(keys, role.Key)
	}
	return keys, nil
}

// HasRoleID reports whether the user holds a specific role in the tenant
// through a non-expired assignment. Used by the surface gate, which binds
// surfaces to role IDs rather than keys.
func (r *Resolver) HasRoleID(ctx context.Context, userID, tenantID, roleID uuid.UUID) (bool, error) {
	activeRoles, err := r.activeRoles(ctx, userID, tenantID)
	if err != nil {
		return false, err
	}

	for _, role := range activeRoles {
		if role.ID == roleID {
			return true, nil
		}
	}
	return false, nil
}

// BundleSatisfied reports whether the user's effective permissions cover
// every permission grouped in the bundle. An empty bundle is never
// satisfied; it gates nothing and treating it as open would make a
// misconfigured binding wide open.
func (r *Resolver) BundleSatisfied(ctx context.Context, userID, tenantID, bundleID uuid.UUID) (bool, error) {
	bundlePerms, err := r.bundles.ListBundlePermissions(ctx, bundleID)
	if err != nil {
		return false, fmt.Errorf("list bundle permissions: %w", err)
	}
	if len(bundlePerms) == 0 {
		return false, nil
	}

	held, err := r.EffectivePermissions(ctx, userID, tenantID)
	if err != nil {
		return false, err
	}

	for _, p := range bundlePerms {
		if !HasCode(held, p.Code) {
			return false, nil
		}
	}
	return true, nil
}

// IsSuperAdmin reports whether the user holds the superadmin designation
// in the tenant.
func (r *Resolver) IsSuperAdmin(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	activeRoles, err := r.activeRoles(ctx, userID, tenantID)
	if err != nil {
		return false, err
	}

	for _, role := range activeRoles {
		if role.IsSystem && role.Key == r.superAdminKey {
			return true, nil
		}
	}
	return false, nil
}

// activeRoles resolves the live roles behind the user's non-expired
// assignments. Missing roles are skipped: a dangling assignment must not
// fail resolution.
func (r *Resolver) activeRoles(ctx context.Context, userID, tenantID uuid.UUID) ([]Role, error) {
	assignments, err := r.assignments.ListUserAssignments(ctx, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	now := r.now()
	var out []Role
	for _, a := range assignments {
		if a.Expired(now) {
			continue
		}

		role, err := r.roles.GetRole(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				continue
			}
			return nil, fmt.Errorf("get role: %w", err)
		}
		if role.Deleted() {
			continue
		}
		out = append(out, *role)
	}
	return out, nil
}
