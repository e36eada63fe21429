package license

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GrantStore provides access to tenant feature grants. Save is an upsert
// keyed by (tenant, feature); renewing a grant overwrites its window.
type GrantStore interface {
	// GetGrant retrieves the grant for a (tenant, feature) pair.
	// Returns ErrGrantNotFound if missing.
	GetGrant(ctx context.Context, tenantID uuid.UUID, feature string) (*Grant, error)

	// ListGrants returns all grants for a tenant, active or not.
	ListGrants(ctx context.Context, tenantID uuid.UUID) ([]Grant, error)

	// SaveGrant creates or replaces a grant.
	SaveGrant(ctx context.Context, grant *Grant) error

	// RevokeGrant removes the grant for a (tenant, feature) pair.
	// Revoking a missing grant is a no-op.
	RevokeGrant(ctx context.Context, tenantID uuid.UUID, feature string) error
}

type grantKey struct {
	tenantID uuid.UUID
	feature  string
}

// MemoryGrantStore is a thread-safe in-memory GrantStore.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[grantKey]Grant
}

// NewMemoryGrantStore creates an empty in-memory grant store.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[grantKey]Grant)}
}

var _ GrantStore = (*MemoryGrantStore)(nil)

func (s *MemoryGrantStore) GetGrant(ctx context.Context, tenantID uuid.UUID, feature string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[grantKey{tenantID, feature}]
	if !ok {
		return nil, ErrGrantNotFound
	}
	return &grant, nil
}

func (s *MemoryGrantStore) ListGrants(ctx context.Context, tenantID uuid.UUID) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Grant
	for key, grant := range s.grants {
		if key.tenantID == tenantID {
			out = append(out, grant)
		}
	}
	return out, nil
}

func (s *MemoryGrantStore) SaveGrant(ctx context.Context, grant *Grant) error {
	if err := validateGrant(grant); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.grants[grantKey{grant.TenantID, grant.Feature}] = *grant
	return nil
}

func (s *MemoryGrantStore) RevokeGrant(ctx context.Context, tenantID uuid.UUID, feature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants, grantKey{tenantID, feature})
	return nil
}

func validateGrant(grant *Grant) error {
	if grant == nil || grant.TenantID == uuid.Nil || grant.Feature == "" {
		return ErrInvalidGrant
	}
	if grant.StartsAt.IsZero() {
		grant.StartsAt = time.Now()
	}
	if grant.ExpiresAt != nil && !grant.ExpiresAt.After(grant.StartsAt) {
		return ErrInvalidGrant
	}
	return nil
}
