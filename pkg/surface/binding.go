package surface

import (
	"github.com/google/uuid"
)

// TargetKind discriminates the binding target union.
type TargetKind string

const (
	TargetRole   TargetKind = "role"
	TargetBundle TargetKind = "bundle"
	TargetMenu   TargetKind = "menu"
)

// Target identifies the single RBAC object a surface is bound to. The
// zero value is invalid; construct targets with RoleTarget, BundleTarget,
// or MenuTarget so that exactly one kind is ever set.
type Target struct {
	kind TargetKind
	id   uuid.UUID
}

// RoleTarget binds a surface to a role: principals holding the role pass.
func RoleTarget(id uuid.UUID) Target {
	return Target{kind: TargetRole, id: id}
}

// BundleTarget binds a surface to a permission bundle: principals whose
// resolved permissions satisfy the bundle pass.
func BundleTarget(id uuid.UUID) Target {
	return Target{kind: TargetBundle, id: id}
}

// MenuTarget binds a surface to a navigation menu entry.
func MenuTarget(id uuid.UUID) Target {
	return Target{kind: TargetMenu, id: id}
}

// Kind returns the target discriminator.
func (t Target) Kind() TargetKind {
	return t.kind
}

// ID returns the identifier of the targeted object.
func (t Target) ID() uuid.UUID {
	return t.id
}

// Valid reports whether the target was built through a constructor and
// carries a real identifier.
func (t Target) Valid() bool {
	switch t.kind {
	case TargetRole, TargetBundle, TargetMenu:
		return t.id != uuid.Nil
	default:
		return false
	}
}

// Binding associates a surface identifier with its access requirements
// within a tenant.
type Binding struct {
	TenantID        uuid.UUID `json:"tenant_id"`
	Surface         string    `json:"surface"`
	Target          Target    `json:"-"`
	RequiredFeature string    `json:"required_feature,omitempty"`
	EnforcesLicense bool      `json:"enforces_license"`
}

// Validate checks the binding invariants: a surface identifier, a valid
// target, and a feature code whenever the license is enforced.
func (b *Binding) Validate() error {
	if b.Surface == "" || b.TenantID == uuid.Nil {
		return ErrInvalidBinding
	}
	if !b.Target.Valid() {
		return ErrInvalidBinding
	}
	if b.EnforcesLicense && b.RequiredFeature == "" {
		return ErrInvalidBinding
	}
	return nil
}
