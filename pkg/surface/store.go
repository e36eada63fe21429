package surface

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// BindingStore provides access to surface bindings. Save is an upsert
// keyed by (tenant, surface).
type BindingStore interface {
	// GetBinding retrieves the binding registered for a surface in a
	// tenant. Returns ErrBindingNotFound if missing.
	GetBinding(ctx context.Context, tenantID uuid.UUID, surfaceID string) (*Binding, error)

	// ListBindings returns all bindings for a tenant.
	ListBindings(ctx context.Context, tenantID uuid.UUID) ([]Binding, error)

	// SaveBinding creates or replaces a binding after validating it.
	SaveBinding(ctx context.Context, binding *Binding) error

	// DeleteBinding removes a binding. Deleting a missing binding is a
	// no-op.
	DeleteBinding(ctx context.Context, tenantID uuid.UUID, surfaceID string) error
}

type bindingKey struct {
	tenantID uuid.UUID
	surface  string
}

// MemoryBindingStore is a thread-safe in-memory BindingStore.
type MemoryBindingStore struct {
	mu       sync.RWMutex
	bindings map[bindingKey]Binding
}

// NewMemoryBindingStore creates an empty in-memory binding store.
func NewMemoryBindingStore() *MemoryBindingStore {
	return &MemoryBindingStore{bindings: make(map[bindingKey]Binding)}
}

var _ BindingStore = (*MemoryBindingStore)(nil)

func (s *MemoryBindingStore) GetBinding(ctx context.Context, tenantID uuid.UUID, surfaceID string) (*Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	binding, ok := s.bindings[bindingKey{tenantID, surfaceID}]
	if !ok {
		return nil, ErrBindingNotFound
	}
	return &binding, nil
}

func (s *MemoryBindingStore) ListBindings(ctx context.Context, tenantID uuid.UUID) ([]Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Binding
	for key, binding := range s.bindings {
		if key.tenantID == tenantID {
			out = append(out, binding)
		}
	}
	return out, nil
}

func (s *MemoryBindingStore) SaveBinding(ctx context.Context, binding *Binding) error {
	if err := binding.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bindings[bindingKey{binding.TenantID, binding.Surface}] = *binding
	return nil
}

func (s *MemoryBindingStore) DeleteBinding(ctx context.Context, tenantID uuid.UUID, surfaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bindings, bindingKey{tenantID, surfaceID})
	return nil
}
