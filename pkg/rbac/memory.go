package rbac

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pair struct {
	left  uuid.UUID
	right uuid.UUID
}

type assignmentKey struct {
	userID   uuid.UUID
	roleID   uuid.UUID
	tenantID uuid.UUID
}

// MemoryStore is a thread-safe in-memory implementation of Store. It is
// used in tests and suits single-process applications; link writes are
// insert-if-absent, mirroring the unique-constraint semantics of the
// relational store.
type MemoryStore struct {
	mu          sync.RWMutex
	roles       map[uuid.UUID]*Role
	permissions map[uuid.UUID]*Permission
	bundles     map[uuid.UUID]*Bundle
	rolePerms   map[pair]struct{} // (roleID, permissionID)
	bundlePerms map[pair]struct{} // (bundleID, permissionID)
	roleBundles map[pair]struct{} // (roleID, bundleID)
	assignments map[assignmentKey]Assignment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:       make(map[uuid.UUID]*Role),
		permissions: make(map[uuid.UUID]*Permission),
		bundles:     make(map[uuid.UUID]*Bundle),
		rolePerms:   make(map[pair]struct{}),
		bundlePerms: make(map[pair]struct{}),
		roleBundles: make(map[pair]struct{}),
		assignments: make(map[assignmentKey]Assignment),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *MemoryStore) FindRoleByMetadataKey(ctx context.Context, tenantID uuid.UUID, metadataKey string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, role := range s.roles {
		if role.Deleted() || role.MetadataKey != metadataKey {
			continue
		}
		if role.TenantID != nil && *role.TenantID != tenantID {
			continue
		}
		cp := *role
		return &cp, nil
	}
	return nil, ErrRoleNotFound
}

func (s *MemoryStore) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Role
	for _, role := range s.roles {
		if role.Deleted() {
			continue
		}
		if role.TenantID != nil && *role.TenantID != tenantID {
			continue
		}
		out = append(out, *role)
	}
	return out, nil
}

func (s *MemoryStore) SaveRole(ctx context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteRole(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return ErrRoleNotFound
	}

	for key := range s.assignments {
		if key.roleID == id {
			// Referenced roles are soft-deleted so historical
			// assignments keep resolving to a row.
			now := time.Now()
			role.DeletedAt = &now
			return nil
		}
	}

	delete(s.roles, id)
	for p := range s.rolePerms {
		if p.left == id {
			delete(s.rolePerms, p)
		}
	}
	for p := range s.roleBundles {
		if p.left == id {
			delete(s.roleBundles, p)
		}
	}
	return nil
}

func (s *MemoryStore) GetPermissionByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, perm := range s.permissions {
		if perm.TenantID == tenantID && perm.Code == code {
			cp := *perm
			return &cp, nil
		}
	}
	return nil, ErrPermissionNotFound
}

func (s *MemoryStore) ListPermissions(ctx context.Context, tenantID uuid.UUID) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Permission
	for _, perm := range s.permissions {
		if perm.TenantID == tenantID {
			out = append(out, *perm)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreatePermission(ctx context.Context, perm *Permission) error {
	if !ValidCode(perm.Code) {
		return ErrInvalidCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.permissions {
		if existing.TenantID == perm.TenantID && existing.Code == perm.Code {
			return ErrPermissionExists
		}
	}

	if perm.ID == uuid.Nil {
		perm.ID = uuid.New()
	}
	cp := *perm
	s.permissions[perm.ID] = &cp
	return nil
}

func (s *MemoryStore) DeletePermission(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[id]; !ok {
		return ErrPermissionNotFound
	}
	delete(s.permissions, id)

	for p := range s.rolePerms {
		if p.right == id {
			delete(s.rolePerms, p)
		}
	}
	for p := range s.bundlePerms {
		if p.right == id {
			delete(s.bundlePerms, p)
		}
	}
	return nil
}

func (s *MemoryStore) LinkRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	if _, ok := s.permissions[permissionID]; !ok {
		return ErrPermissionNotFound
	}
	s.rolePerms[pair{roleID, permissionID}] = struct{}{}
	return nil
}

func (s *MemoryStore) UnlinkRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rolePerms, pair{roleID, permissionID})
	return nil
}

func (s *MemoryStore) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Permission
	for p := range s.rolePerms {
		if p.left != roleID {
			continue
		}
		if perm, ok := s.permissions[p.right]; ok {
			out = append(out, *perm)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetBundle(ctx context.Context, id uuid.UUID) (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bundle, ok := s.bundles[id]
	if !ok {
		return nil, ErrBundleNotFound
	}
	cp := *bundle
	return &cp, nil
}

func (s *MemoryStore) SaveBundle(ctx context.Context, bundle *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bundle.ID == uuid.Nil {
		bundle.ID = uuid.New()
	}
	cp := *bundle
	s.bundles[bundle.ID] = &cp
	return nil
}

func (s *MemoryStore) LinkBundlePermission(ctx context.Context, bundleID, permissionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bundles[bundleID]; !ok {
		return ErrBundleNotFound
	}
	if _, ok := s.permissions[permissionID]; !ok {
		return ErrPermissionNotFound
	}
	s.bundlePerms[pair{bundleID, permissionID}] = struct{}{}
	return nil
}

func (s *MemoryStore) LinkRoleBundle(ctx context.Context, roleID, bundleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	if _, ok := s.bundles[bundleID]; !ok {
		return ErrBundleNotFound
	}
	s.roleBundles[pair{roleID, bundleID}] = struct{}{}
	return nil
}

func (s *MemoryStore) ListBundlePermissions(ctx context.Context, bundleID uuid.UUID) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Permission
	for p := range s.bundlePerms {
		if p.left != bundleID {
			continue
		}
		if perm, ok := s.permissions[p.right]; ok {
			out = append(out, *perm)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRoleBundles(ctx context.Context, roleID uuid.UUID) ([]Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Bundle
	for p := range s.roleBundles {
		if p.left != roleID {
			continue
		}
		if bundle, ok := s.bundles[p.right]; ok {
			out = append(out, *bundle)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListUserAssignments(ctx context.Context, userID, tenantID uuid.UUID) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Assignment
	for key, a := range s.assignments {
		if key.userID == userID && key.tenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) Assign(ctx context.Context, a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[a.RoleID]; !ok {
		return ErrRoleNotFound
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	key := assignmentKey{a.UserID, a.RoleID, a.TenantID}
	if _, exists := s.assignments[key]; exists {
		return nil
	}
	s.assignments[key] = a
	return nil
}

func (s *MemoryStore) Revoke(ctx context.Context, userID, roleID, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assignments, assignmentKey{userID, roleID, tenantID})
	return nil
}
