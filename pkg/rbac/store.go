package rbac

import (
	"context"

	"github.com/google/uuid"
)

// RoleStore provides access to role records.
type RoleStore interface {
	// GetRole retrieves a role by ID. Returns ErrRoleNotFound if missing.
	GetRole(ctx context.Context, id uuid.UUID) (*Role, error)

	// FindRoleByMetadataKey resolves a tenant role by its stable metadata
	// key, used to match deployment templates against provisioned roles.
	// Soft-deleted roles are not returned.
	FindRoleByMetadataKey(ctx context.Context, tenantID uuid.UUID, metadataKey string) (*Role, error)

	// ListRoles returns all live roles visible to the tenant, including
	// system roles.
	ListRoles(ctx context.Context, tenantID uuid.UUID) ([]Role, error)

	// SaveRole creates or updates a role.
	SaveRole(ctx context.Context, role *Role) error

	// DeleteRole soft-deletes a role that still has references, or removes
	// it outright when nothing points at it.
	DeleteRole(ctx context.Context, id uuid.UUID) error
}

// PermissionStore provides access to permission records and the
// role-permission join. Link operations are idempotent: linking an
// existing pair is a no-op, not an error.
type PermissionStore interface {
	// GetPermissionByCode retrieves a tenant permission by code.
	// Returns ErrPermissionNotFound if missing.
	GetPermissionByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Permission, error)

	// ListPermissions returns all permissions for a tenant.
	ListPermissions(ctx context.Context, tenantID uuid.UUID) ([]Permission, error)

	// CreatePermission inserts a permission. Returns ErrPermissionExists
	// when the (tenant, code) pair is already taken.
	CreatePermission(ctx context.Context, perm *Permission) error

	// DeletePermission removes a permission and cascades to its role links.
	DeletePermission(ctx context.Context, id uuid.UUID) error

	// LinkRolePermission attaches a permission to a role (insert if absent).
	LinkRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	// UnlinkRolePermission detaches a permission from a role.
	UnlinkRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	// ListRolePermissions returns permissions directly linked to a role.
	ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error)
}

// BundleStore provides access to permission bundles and their joins with
// permissions and roles. Link operations are idempotent.
type BundleStore interface {
	// GetBundle retrieves a bundle by ID. Returns ErrBundleNotFound if missing.
	GetBundle(ctx context.Context, id uuid.UUID) (*Bundle, error)

	// SaveBundle creates or updates a bundle.
	SaveBundle(ctx context.Context, bundle *Bundle) error

	// LinkBundlePermission attaches a permission to a bundle.
	LinkBundlePermission(ctx context.Context, bundleID, permissionID uuid.UUID) error

	// LinkRoleBundle attaches a bundle to a role.
	LinkRoleBundle(ctx context.Context, roleID, bundleID uuid.UUID) error

	// ListBundlePermissions returns the permissions grouped in a bundle.
	ListBundlePermissions(ctx context.Context, bundleID uuid.UUID) ([]Permission, error)

	// ListRoleBundles returns the bundles linked to a role.
	ListRoleBundles(ctx context.Context, roleID uuid.UUID) ([]Bundle, error)
}

// AssignmentStore provides access to user-role assignments. Expired
// delegated assignments are retained for audit and filtered at read time
// by the resolver, not by the store.
type AssignmentStore interface {
	// ListUserAssignments returns all assignments for a user in a tenant,
	// including expired ones.
	ListUserAssignments(ctx context.Context, userID, tenantID uuid.UUID) ([]Assignment, error)

	// Assign creates an assignment (insert if absent).
	Assign(ctx context.Context, a Assignment) error

	// Revoke removes an assignment.
	Revoke(ctx context.Context, userID, roleID, tenantID uuid.UUID) error
}

// Store groups all four store interfaces; implemented by MemoryStore and
// the postgres store.
type Store interface {
	RoleStore
	PermissionStore
	BundleStore
	AssignmentStore
}
