package rbac

import "errors"

// Domain errors for the RBAC model and resolver.
var (
	// ErrRoleNotFound is returned when a referenced role does not exist.
	ErrRoleNotFound = errors.New("rbac.role_not_found")

	// ErrPermissionNotFound is returned when a referenced permission does not exist.
	ErrPermissionNotFound = errors.New("rbac.permission_not_found")

	// ErrBundleNotFound is returned when a referenced bundle does not exist.
	ErrBundleNotFound = errors.New("rbac.bundle_not_found")

	// ErrPermissionExists is returned when a permission code is already
	// taken within the tenant.
	ErrPermissionExists = errors.New("rbac.permission_exists")

	// ErrInvalidCode is returned for malformed permission codes.
	ErrInvalidCode = errors.New("rbac.invalid_code")

	// ErrRoleReferenced is returned when deleting a role that still has
	// assignments; such roles are soft-deleted instead.
	ErrRoleReferenced = errors.New("rbac.role_referenced")
)
