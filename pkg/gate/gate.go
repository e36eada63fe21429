package gate

import (
	"context"
	"errors"
)

// Decision is the structured outcome of a gate check.
type Decision struct {
	Allowed bool `json:"allowed"`

	// Reason is a human-readable explanation of a denial. Empty when
	// allowed.
	Reason string `json:"reason,omitempty"`

	// Fallback is an optional UI-facing redirect target attached via
	// WithFallback. It is passed through to the caller and has no effect
	// on the decision.
	Fallback string `json:"fallback,omitempty"`
}

// Gate is a composable access check. Implementations must be safe for
// concurrent use.
type Gate interface {
	// Check evaluates the gate. With graceful failure enabled (the
	// default) the returned error is always nil and internal failures
	// surface as denials; with it disabled, unexpected internal errors
	// are returned as-is.
	Check(ctx context.Context, p Principal) (Decision, error)

	// Allows reports whether the check passed.
	Allows(ctx context.Context, p Principal) bool

	// Verify returns nil when allowed and an *AccessDeniedError when
	// denied.
	Verify(ctx context.Context, p Principal) error
}

// checkFn is the raw evaluation behind a gate: it may return an internal
// error, which the wrapping gate converts according to its graceful-fail
// setting.
type checkFn func(ctx context.Context, p Principal) (Decision, error)

// gateFunc carries a checkFn plus per-gate configuration. Every gate
// built by this package is a *gateFunc, which lets WithFallback and
// WithoutGracefulFail clone-and-adjust instead of stacking wrappers.
type gateFunc struct {
	check          checkFn
	graceful       bool
	fallbackPath   string
	fallbackReason string
}

func newGate(check checkFn) *gateFunc {
	return &gateFunc{check: check, graceful: true}
}

func (g *gateFunc) Check(ctx context.Context, p Principal) (Decision, error) {
	d, err := g.check(ctx, p)
	if err != nil {
		if !g.graceful {
			return Decision{}, err
		}
		// Configuration mistakes stay visible in the denial reason even
		// under graceful failure; genuine internal errors do not leak
		// detail to callers.
		if errors.Is(err, ErrEmptyGateConfig) || errors.Is(err, ErrMissingTenant) {
			d = Decision{Allowed: false, Reason: err.Error()}
		} else {
			d = Decision{Allowed: false, Reason: ReasonInternalError}
		}
	}

	if !d.Allowed {
		if g.fallbackPath != "" {
			d.Fallback = g.fallbackPath
		}
		if g.fallbackReason != "" {
			d.Reason = g.fallbackReason
		}
	}
	return d, nil
}

func (g *gateFunc) Allows(ctx context.Context, p Principal) bool {
	d, err := g.Check(ctx, p)
	return err == nil && d.Allowed
}

func (g *gateFunc) Verify(ctx context.Context, p Principal) error {
	d, err := g.Check(ctx, p)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &AccessDeniedError{Reason: d.Reason, Fallback: d.Fallback}
	}
	return nil
}

// asGateFunc converts any Gate into the package's internal representation
// so option functions can apply to externally implemented gates too.
func asGateFunc(g Gate) *gateFunc {
	if gf, ok := g.(*gateFunc); ok {
		cp := *gf
		return &cp
	}
	return newGate(func(ctx context.Context, p Principal) (Decision, error) {
		return g.Check(ctx, p)
	})
}

// WithFallback attaches a UI redirect target and an optional reason
// override to denials of the given gate.
func WithFallback(g Gate, path, reason string) Gate {
	gf := asGateFunc(g)
	gf.fallbackPath = path
	gf.fallbackReason = reason
	return gf
}

// WithoutGracefulFail disables graceful failure: unexpected internal
// errors from the gate propagate to the caller instead of becoming
// denials. Intended for development and tests, where a broken gate should
// fail loudly.
func WithoutGracefulFail(g Gate) Gate {
	gf := asGateFunc(g)
	gf.graceful = false
	return gf
}
