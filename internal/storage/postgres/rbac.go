package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gatekit/gatekit/pkg/pg"
	"github.com/gatekit/gatekit/pkg/rbac"
)

const roleColumns = "id, tenant_id, key, metadata_key, is_system, is_delegatable, scope, deleted_at"

func scanRole(row pgx.Row) (*rbac.Role, error) {
	var r rbac.Role
	err := row.Scan(&r.ID, &r.TenantID, &r.Key, &r.MetadataKey, &r.IsSystem, &r.IsDelegatable, &r.Scope, &r.DeletedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetRole(ctx context.Context, id uuid.UUID) (*rbac.Role, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

func (s *Store) FindRoleByMetadataKey(ctx context.Context, tenantID uuid.UUID, metadataKey string) (*rbac.Role, error) {
	// System roles (tenant_id IS NULL) are visible to every tenant;
	// tenant roles win over a system role with the same key.
	row := s.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles
		 WHERE metadata_key = $2 AND deleted_at IS NULL
		   AND (tenant_id = $1 OR tenant_id IS NULL)
		 ORDER BY tenant_id NULLS LAST
		 LIMIT 1`, tenantID, metadataKey)
	return scanRole(row)
}

func (s *Store) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]rbac.Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles
		 WHERE deleted_at IS NULL AND (tenant_id = $1 OR tenant_id IS NULL)
		 ORDER BY key`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.Role
	for rows.Next() {
		var r rbac.Role
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Key, &r.MetadataKey, &r.IsSystem, &r.IsDelegatable, &r.Scope, &r.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveRole(ctx context.Context, role *rbac.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO roles (id, tenant_id, key, metadata_key, is_system, is_delegatable, scope, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   key = EXCLUDED.key,
		   metadata_key = EXCLUDED.metadata_key,
		   is_system = EXCLUDED.is_system,
		   is_delegatable = EXCLUDED.is_delegatable,
		   scope = EXCLUDED.scope,
		   deleted_at = EXCLUDED.deleted_at`,
		role.ID, role.TenantID, role.Key, role.MetadataKey, role.IsSystem, role.IsDelegatable, role.Scope, role.DeletedAt)
	return err
}

func (s *Store) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var referenced bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM role_assignments WHERE role_id = $1)`, id).Scan(&referenced)
		if err != nil {
			return err
		}

		if referenced {
			// Historical assignments must keep resolving to a row.
			tag, err := tx.Exec(ctx,
				`UPDATE roles SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, time.Now())
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return rbac.ErrRoleNotFound
			}
			return nil
		}

		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return rbac.ErrRoleNotFound
		}
		return nil
	})
}

const permissionColumns = "id, tenant_id, code, source, source_ref"

func (s *Store) GetPermissionByCode(ctx context.Context, tenantID uuid.UUID, code string) (*rbac.Permission, error) {
	var p rbac.Permission
	err := s.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE tenant_id = $1 AND code = $2`,
		tenantID, code).Scan(&p.ID, &p.TenantID, &p.Code, &p.Source, &p.SourceRef)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, rbac.ErrPermissionNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPermissions(ctx context.Context, tenantID uuid.UUID) ([]rbac.Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE tenant_id = $1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *Store) CreatePermission(ctx context.Context, perm *rbac.Permission) error {
	if !rbac.ValidCode(perm.Code) {
		return rbac.ErrInvalidCode
	}
	if perm.ID == uuid.Nil {
		perm.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO permissions (id, tenant_id, code, source, source_ref)
		 VALUES ($1, $2, $3, $4, $5)`,
		perm.ID, perm.TenantID, perm.Code, perm.Source, perm.SourceRef)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return rbac.ErrPermissionExists
		}
		return err
	}
	return nil
}

func (s *Store) DeletePermission(ctx context.Context, id uuid.UUID) error {
	// Role and bundle links cascade through foreign keys.
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrPermissionNotFound
	}
	return nil
}

func (s *Store) LinkRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id)
		 VALUES ($1, $2)
		 ON CONFLICT (role_id, permission_id) DO NOTHING`,
		roleID, permissionID)
	if pg.IsForeignKeyViolationError(err) {
		return rbac.ErrRoleNotFound
	}
	return err
}

func (s *Store) UnlinkRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID)
	return err
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]rbac.Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.tenant_id, p.code, p.source, p.source_ref
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1
		 ORDER BY p.code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *Store) GetBundle(ctx context.Context, id uuid.UUID) (*rbac.Bundle, error) {
	var b rbac.Bundle
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name FROM bundles WHERE id = $1`, id).
		Scan(&b.ID, &b.TenantID, &b.Name)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, rbac.ErrBundleNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) SaveBundle(ctx context.Context, bundle *rbac.Bundle) error {
	if bundle.ID == uuid.Nil {
		bundle.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bundles (id, tenant_id, name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		bundle.ID, bundle.TenantID, bundle.Name)
	return err
}

func (s *Store) LinkBundlePermission(ctx context.Context, bundleID, permissionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bundle_permissions (bundle_id, permission_id)
		 VALUES ($1, $2)
		 ON CONFLICT (bundle_id, permission_id) DO NOTHING`,
		bundleID, permissionID)
	if pg.IsForeignKeyViolationError(err) {
		return rbac.ErrBundleNotFound
	}
	return err
}

func (s *Store) LinkRoleBundle(ctx context.Context, roleID, bundleID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_bundles (role_id, bundle_id)
		 VALUES ($1, $2)
		 ON CONFLICT (role_id, bundle_id) DO NOTHING`,
		roleID, bundleID)
	if pg.IsForeignKeyViolationError(err) {
		return rbac.ErrRoleNotFound
	}
	return err
}

func (s *Store) ListBundlePermissions(ctx context.Context, bundleID uuid.UUID) ([]rbac.Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.tenant_id, p.code, p.source, p.source_ref
		 FROM permissions p
		 JOIN bundle_permissions bp ON bp.permission_id = p.id
		 WHERE bp.bundle_id = $1
		 ORDER BY p.code`, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *Store) ListRoleBundles(ctx context.Context, roleID uuid.UUID) ([]rbac.Bundle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT b.id, b.tenant_id, b.name
		 FROM bundles b
		 JOIN role_bundles rb ON rb.bundle_id = b.id
		 WHERE rb.role_id = $1
		 ORDER BY b.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.Bundle
	for rows.Next() {
		var b rbac.Bundle
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Name); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListUserAssignments(ctx context.Context, userID, tenantID uuid.UUID) ([]rbac.Assignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, role_id, tenant_id, granted_by, delegation_scope, delegation_expires_at, created_at
		 FROM role_assignments
		 WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.Assignment
	for rows.Next() {
		var (
			a         rbac.Assignment
			grantedBy *uuid.UUID
			scope     *string
			expiresAt *time.Time
		)
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.TenantID, &grantedBy, &scope, &expiresAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		if grantedBy != nil && expiresAt != nil {
			a.Delegation = &rbac.Delegation{GrantedBy: *grantedBy, ExpiresAt: *expiresAt}
			if scope != nil {
				a.Delegation.Scope = *scope
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Assign(ctx context.Context, a rbac.Assignment) error {
	var (
		grantedBy *uuid.UUID
		scope     *string
		expiresAt *time.Time
	)
	if a.Delegation != nil {
		grantedBy = &a.Delegation.GrantedBy
		expiresAt = &a.Delegation.ExpiresAt
		if a.Delegation.Scope != "" {
			scope = &a.Delegation.Scope
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_assignments (user_id, role_id, tenant_id, granted_by, delegation_scope, delegation_expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, role_id, tenant_id) DO NOTHING`,
		a.UserID, a.RoleID, a.TenantID, grantedBy, scope, expiresAt, a.CreatedAt)
	if pg.IsForeignKeyViolationError(err) {
		return rbac.ErrRoleNotFound
	}
	return err
}

func (s *Store) Revoke(ctx context.Context, userID, roleID, tenantID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM role_assignments WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3`,
		userID, roleID, tenantID)
	return err
}

func scanPermissions(rows pgx.Rows) ([]rbac.Permission, error) {
	var out []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Code, &p.Source, &p.SourceRef); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
