package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/license"
	"github.com/gatekit/gatekit/pkg/rbac"
	"github.com/gatekit/gatekit/pkg/surface"
)

// Mode selects how a multi-value gate combines its requirements.
type Mode string

const (
	// ModeAll requires every listed code or key to be present.
	ModeAll Mode = "all"
	// ModeAny requires at least one listed code or key to be present.
	ModeAny Mode = "any"
)

// Engine builds gates wired to the three resolvers. Gates built through
// an Engine honor the superadmin bypass: a superadmin principal passes
// them without further evaluation.
type Engine struct {
	rbac     *rbac.Resolver
	license  *license.Resolver
	surfaces *surface.Resolver
	bypass   bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithoutSuperAdminBypass disables the system-wide superadmin bypass on
// gates built by this engine.
func WithoutSuperAdminBypass() EngineOption {
	return func(e *Engine) { e.bypass = false }
}

// NewEngine creates a gate factory. The rbac resolver is required; the
// license and surface resolvers may be nil when the corresponding gate
// kinds are not used.
func NewEngine(rbacResolver *rbac.Resolver, licenseResolver *license.Resolver, surfaceResolver *surface.Resolver, opts ...EngineOption) *Engine {
	if rbacResolver == nil {
		panic("gate: rbac resolver is required")
	}

	e := &Engine{
		rbac:     rbacResolver,
		license:  licenseResolver,
		surfaces: surfaceResolver,
		bypass:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// withBypass wraps a check with the superadmin short-circuit. Resolution
// errors during the bypass probe fall through to the regular check rather
// than failing the gate.
func (e *Engine) withBypass(check checkFn) *gateFunc {
	if !e.bypass {
		return newGate(check)
	}
	return newGate(func(ctx context.Context, p Principal) (Decision, error) {
		if p.Authenticated() {
			if ok, err := e.rbac.IsSuperAdmin(ctx, p.UserID, p.TenantID); err == nil && ok {
				return Decision{Allowed: true}, nil
			}
		}
		return check(ctx, p)
	})
}

// requireTenant validates the common preconditions of tenant-scoped gates.
func requireTenant(p Principal) (Decision, error, bool) {
	if !p.Authenticated() {
		return Decision{Reason: ReasonNotAuthenticated}, nil, false
	}
	if p.TenantID == uuid.Nil {
		return Decision{}, fmt.Errorf("%w: principal has no tenant", ErrMissingTenant), false
	}
	return Decision{}, nil, true
}

// Permissions builds a gate over the principal's resolved permission set.
// ModeAll requires every code; ModeAny requires at least one. An empty
// code list is a configuration error.
func (e *Engine) Permissions(mode Mode, codes ...string) Gate {
	normalized := rbac.NormalizeCodes(codes)

	return e.withBypass(func(ctx context.Context, p Principal) (Decision, error) {
		if len(normalized) == 0 {
			return Decision{}, fmt.Errorf("%w: permission gate needs at least one code", ErrEmptyGateConfig)
		}
		if d, err, ok := requireTenant(p); !ok {
			return d, err
		}

		held, err := e.rbac.EffectivePermissions(ctx, p.UserID, p.TenantID)
		if err != nil {
			return Decision{}, err
		}

		switch mode {
		case ModeAll:
			if rbac.HasAllCodes(held, normalized) {
				return Decision{Allowed: true}, nil
			}
			return Decision{Reason: fmt.Sprintf("missing required permissions: %s", strings.Join(normalized, ", "))}, nil
		case ModeAny:
			if rbac.HasAnyCodes(held, normalized) {
				return Decision{Allowed: true}, nil
			}
			return Decision{Reason: fmt.Sprintf("missing any of permissions: %s", strings.Join(normalized, ", "))}, nil
		default:
			return Decision{}, fmt.Errorf("%w: unknown mode %q", ErrEmptyGateConfig, mode)
		}
	})
}

// Roles builds a gate over the principal's assigned role keys (not
// permissions). An empty key list is a configuration error.
func (e *Engine) Roles(mode Mode, keys ...string) Gate {
	return e.withBypass(func(ctx context.Context, p Principal) (Decision, error) {
		if len(keys) == 0 {
			return Decision{}, fmt.Errorf("%w: role gate needs at least one role key", ErrEmptyGateConfig)
		}
		if d, err, ok := requireTenant(p); !ok {
			return d, err
		}

		assigned, err := e.rbac.RoleKeys(ctx, p.UserID, p.TenantID)
		if err != nil {
			return Decision{}, err
		}

		has := func(key string) bool {
			for _, a := range assigned {
				if a == key {
					return true
				}
			}
			return false
		}

		switch mode {
		case ModeAll:
			for _, key := range keys {
				if !has(key) {
					return Decision{Reason: fmt.Sprintf("role %q required", key)}, nil
				}
			}
			return Decision{Allowed: true}, nil
		case ModeAny:
			for _, key := range keys {
				if has(key) {
					return Decision{Allowed: true}, nil
				}
			}
			return Decision{Reason: fmt.Sprintf("one of roles required: %s", strings.Join(keys, ", "))}, nil
		default:
			return Decision{}, fmt.Errorf("%w: unknown mode %q", ErrEmptyGateConfig, mode)
		}
	})
}

// License builds a gate requiring an active feature grant for the
// principal's tenant.
func (e *Engine) License(feature string) Gate {
	return e.withBypass(func(ctx context.Context, p Principal) (Decision, error) {
		if feature == "" {
			return Decision{}, fmt.Errorf("%w: license gate needs a feature code", ErrEmptyGateConfig)
		}
		if e.license == nil {
			return Decision{}, fmt.Errorf("%w: engine has no license resolver", ErrEmptyGateConfig)
		}
		if p.TenantID == uuid.Nil {
			return Decision{}, fmt.Errorf("%w: principal has no tenant", ErrMissingTenant)
		}

		ok, err := e.license.HasFeature(ctx, p.TenantID, feature)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{Reason: fmt.Sprintf("feature %q is not licensed for this tenant", feature)}, nil
		}
		return Decision{Allowed: true}, nil
	})
}

// SuperAdmin builds a gate that passes only principals holding the
// superadmin designation.
func (e *Engine) SuperAdmin() Gate {
	return newGate(func(ctx context.Context, p Principal) (Decision, error) {
		if !p.Authenticated() {
			return Decision{Reason: ReasonNotAuthenticated}, nil
		}

		ok, err := e.rbac.IsSuperAdmin(ctx, p.UserID, p.TenantID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{Reason: "superadmin role required"}, nil
		}
		return Decision{Allowed: true}, nil
	})
}

// Surface builds a gate from the registered binding of a surface. The
// principal passes when it holds the bound role (or satisfies the bound
// bundle) and, if the binding enforces licensing, the tenant holds the
// required feature. Unregistered surfaces follow the surface resolver's
// default policy. Menu targets gate navigation visibility only and carry
// no RBAC requirement of their own; for them only the license condition
// applies.
func (e *Engine) Surface(surfaceID string) Gate {
	return e.withBypass(func(ctx context.Context, p Principal) (Decision, error) {
		if surfaceID == "" {
			return Decision{}, fmt.Errorf("%w: surface gate needs a surface id", ErrEmptyGateConfig)
		}
		if e.surfaces == nil {
			return Decision{}, fmt.Errorf("%w: engine has no surface resolver", ErrEmptyGateConfig)
		}
		if d, err, ok := requireTenant(p); !ok {
			return d, err
		}

		binding, err := e.surfaces.Binding(ctx, p.TenantID, surfaceID)
		if err != nil {
			if errors.Is(err, surface.ErrBindingNotFound) {
				if e.surfaces.DefaultPolicy() == surface.PolicyAllow {
					return Decision{Allowed: true}, nil
				}
				return Decision{Reason: fmt.Sprintf("surface %q is not registered", surfaceID)}, nil
			}
			return Decision{}, err
		}

		satisfied, err := e.targetSatisfied(ctx, p, binding.Target)
		if err != nil {
			return Decision{}, err
		}
		if !satisfied {
			return Decision{Reason: fmt.Sprintf("surface %q is not open to your roles", surfaceID)}, nil
		}

		if binding.EnforcesLicense {
			if e.license == nil {
				return Decision{}, fmt.Errorf("%w: engine has no license resolver", ErrEmptyGateConfig)
			}
			licensed, err := e.license.HasFeature(ctx, p.TenantID, binding.RequiredFeature)
			if err != nil {
				return Decision{}, err
			}
			if !licensed {
				return Decision{Reason: fmt.Sprintf("surface %q requires feature %q, which is not licensed", surfaceID, binding.RequiredFeature)}, nil
			}
		}

		return Decision{Allowed: true}, nil
	})
}

func (e *Engine) targetSatisfied(ctx context.Context, p Principal, target surface.Target) (bool, error) {
	switch target.Kind() {
	case surface.TargetRole:
		return e.rbac.HasRoleID(ctx, p.UserID, p.TenantID, target.ID())
	case surface.TargetBundle:
		return e.rbac.BundleSatisfied(ctx, p.UserID, p.TenantID, target.ID())
	case surface.TargetMenu:
		return true, nil
	default:
		return false, nil
	}
}

// Authenticated is a gate that passes any principal with a user identity.
func Authenticated() Gate {
	return newGate(func(ctx context.Context, p Principal) (Decision, error) {
		if !p.Authenticated() {
			return Decision{Reason: ReasonNotAuthenticated}, nil
		}
		return Decision{Allowed: true}, nil
	})
}

// Predicate is an arbitrary business rule over a principal, used for
// checks outside the permission model such as per-record ownership.
type Predicate func(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)

// Custom wraps a predicate as a gate, denying with the given reason when
// the predicate returns false.
func Custom(predicate Predicate, denialReason string) Gate {
	return newGate(func(ctx context.Context, p Principal) (Decision, error) {
		if predicate == nil {
			return Decision{}, fmt.Errorf("%w: custom gate needs a predicate", ErrEmptyGateConfig)
		}

		ok, err := predicate(ctx, p.UserID, p.TenantID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{Reason: denialReason}, nil
		}
		return Decision{Allowed: true}, nil
	})
}
