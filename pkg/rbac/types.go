package rbac

import (
	"time"

	"github.com/google/uuid"
)

// RoleScope describes the breadth of a role's authority.
type RoleScope string

const (
	RoleScopeTenant   RoleScope = "tenant"
	RoleScopeCampus   RoleScope = "campus"
	RoleScopeMinistry RoleScope = "ministry"
	RoleScopeGlobal   RoleScope = "global"
	RoleScopeSystem   RoleScope = "system"
)

// SuperAdminRoleKey is the default role key carrying the superadmin
// designation. Principals holding a system role with this key bypass
// normal permission resolution.
const SuperAdminRoleKey = "superadmin"

// Role is a named collection of permissions and bundles assignable to users.
// System roles are tenant-agnostic blueprints seeded once; TenantID is nil
// for them. Roles referenced by assignments are soft-deleted, never removed.
type Role struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      *uuid.UUID `json:"tenant_id,omitempty"`
	Key           string     `json:"key"`
	MetadataKey   string     `json:"metadata_key"`
	IsSystem      bool       `json:"is_system"`
	IsDelegatable bool       `json:"is_delegatable"`
	Scope         RoleScope  `json:"scope"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the role has been soft-deleted.
func (r *Role) Deleted() bool {
	return r.DeletedAt != nil
}

// PermissionSource records how a permission came into existence. The
// deployment pipeline only ever touches permissions it created itself
// (SourceLicenseFeature); manual and system permissions are off limits.
type PermissionSource string

const (
	SourceManual         PermissionSource = "manual"
	SourceLicenseFeature PermissionSource = "license_feature"
	SourceSystem         PermissionSource = "system"
)

// Permission is an atomic right scoped to a tenant. Code is unique per
// tenant. SourceRef holds the feature code for license-derived permissions.
type Permission struct {
	ID        uuid.UUID        `json:"id"`
	TenantID  uuid.UUID        `json:"tenant_id"`
	Code      string           `json:"code"`
	Source    PermissionSource `json:"source"`
	SourceRef string           `json:"source_ref,omitempty"`
}

// Bundle is a named, reusable group of permissions. Bundles link
// many-to-many with both permissions and roles.
type Bundle struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Name     string    `json:"name"`
}

// Delegation carries the metadata of a time-boxed role grant from one
// principal to another. An assignment with a delegation stops contributing
// permissions once ExpiresAt passes; the row itself is kept for audit.
type Delegation struct {
	GrantedBy uuid.UUID `json:"granted_by"`
	Scope     string    `json:"scope,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Assignment binds a user to a role within a tenant.
type Assignment struct {
	UserID     uuid.UUID   `json:"user_id"`
	RoleID     uuid.UUID   `json:"role_id"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	Delegation *Delegation `json:"delegation,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Expired reports whether a delegated assignment has lapsed at the given
// instant. Non-delegated assignments never expire.
func (a *Assignment) Expired(now time.Time) bool {
	if a.Delegation == nil {
		return false
	}
	return !now.Before(a.Delegation.ExpiresAt)
}
