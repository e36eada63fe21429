package license

import (
	"time"

	"github.com/google/uuid"
)

// GrantSource records how a tenant acquired a feature grant.
type GrantSource string

const (
	GrantSourcePlan   GrantSource = "plan"   // granted as part of a purchased plan
	GrantSourceManual GrantSource = "manual" // granted by an operator
	GrantSourceTrial  GrantSource = "trial"  // time-boxed evaluation grant
)

// Grant is a tenant's time-bounded entitlement to a licensed feature.
// A nil ExpiresAt means the grant never lapses.
type Grant struct {
	TenantID  uuid.UUID   `json:"tenant_id"`
	Feature   string      `json:"feature"`
	StartsAt  time.Time   `json:"starts_at"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	Source    GrantSource `json:"source"`
}

// Active reports whether the grant covers the given instant.
func (g *Grant) Active(now time.Time) bool {
	if now.Before(g.StartsAt) {
		return false
	}
	if g.ExpiresAt == nil {
		return true
	}
	return now.Before(*g.ExpiresAt)
}

// ChangeKind classifies a grant lifecycle change.
type ChangeKind string

const (
	ChangeGranted ChangeKind = "granted"
	ChangeRenewed ChangeKind = "renewed"
	ChangeRevoked ChangeKind = "revoked"
)

// ChangeEvent announces a grant change to downstream consumers. The
// deployment pipeline reacts to these instead of being called directly by
// licensing code.
type ChangeEvent struct {
	TenantID   uuid.UUID  `json:"tenant_id"`
	Feature    string     `json:"feature"`
	Kind       ChangeKind `json:"kind"`
	OccurredAt time.Time  `json:"occurred_at"`
}
