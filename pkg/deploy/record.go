package deploy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/statemachine"
)

// Deployment lifecycle states per (tenant, feature) pair.
const (
	StateNotLicensed       statemachine.State = "not_licensed"
	StatePendingDeployment statemachine.State = "pending_deployment"
	StateDeployed          statemachine.State = "deployed"
	StatePendingRemoval    statemachine.State = "pending_removal"
	StateRemoved           statemachine.State = "removed"
)

// Lifecycle events, driven exclusively by license grant changes.
const (
	EventGrant  statemachine.Event = "grant"
	EventDeploy statemachine.Event = "deploy"
	EventRevoke statemachine.Event = "revoke"
	EventRemove statemachine.Event = "remove"
)

// lifecycle validates deployment state transitions. Redeploying a
// deployed feature and re-granting during a removal grace period are
// both legal.
var lifecycle = statemachine.New(
	statemachine.T(StateNotLicensed, StatePendingDeployment, EventGrant),
	statemachine.T(StatePendingDeployment, StateDeployed, EventDeploy),
	statemachine.T(StateDeployed, StateDeployed, EventDeploy),
	statemachine.T(StateDeployed, StatePendingRemoval, EventRevoke),
	statemachine.T(StatePendingRemoval, StateDeployed, EventDeploy),
	statemachine.T(StatePendingRemoval, StateRemoved, EventRemove),
	statemachine.T(StateRemoved, StatePendingDeployment, EventGrant),
)

// Record tracks the last synced deployment state of a (tenant, feature)
// pair, for idempotence, grace-period bookkeeping, and drift reporting.
type Record struct {
	TenantID   uuid.UUID          `json:"tenant_id"`
	Feature    string             `json:"feature"`
	State      statemachine.State `json:"state"`
	DeployedAt *time.Time         `json:"deployed_at,omitempty"`
	RevokedAt  *time.Time         `json:"revoked_at,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// fire advances the record through the lifecycle machine.
func (r *Record) fire(event statemachine.Event, now time.Time) error {
	next, err := lifecycle.Fire(r.State, event)
	if err != nil {
		return err
	}
	r.State = next
	r.UpdatedAt = now

	switch event {
	case EventDeploy:
		r.DeployedAt = &now
		r.RevokedAt = nil
	case EventRevoke:
		r.RevokedAt = &now
	}
	return nil
}

// RecordStore persists deployment records. Save is an upsert keyed by
// (tenant, feature); Get on a missing pair returns (nil, nil) — a pair
// with no record is simply not licensed yet.
type RecordStore interface {
	GetRecord(ctx context.Context, tenantID uuid.UUID, feature string) (*Record, error)
	ListRecords(ctx context.Context, tenantID uuid.UUID) ([]Record, error)
	SaveRecord(ctx context.Context, record *Record) error
}

type recordKey struct {
	tenantID uuid.UUID
	feature  string
}

// MemoryRecordStore is a thread-safe in-memory RecordStore.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[recordKey]Record
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[recordKey]Record)}
}

var _ RecordStore = (*MemoryRecordStore)(nil)

func (s *MemoryRecordStore) GetRecord(ctx context.Context, tenantID uuid.UUID, feature string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordKey{tenantID, feature}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *MemoryRecordStore) ListRecords(ctx context.Context, tenantID uuid.UUID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for key, record := range s.records {
		if key.tenantID == tenantID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *MemoryRecordStore) SaveRecord(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey{record.TenantID, record.Feature}] = *record
	return nil
}
