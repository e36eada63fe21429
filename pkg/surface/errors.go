package surface

import "errors"

// Domain errors for surface binding resolution.
var (
	// ErrBindingNotFound is returned for unregistered surfaces. Callers
	// distinguish it from a policy denial: a missing registration is a
	// developer error, not an expected runtime state.
	ErrBindingNotFound = errors.New("surface.binding_not_found")

	// ErrInvalidBinding is returned for bindings that violate the target
	// or license invariants.
	ErrInvalidBinding = errors.New("surface.invalid_binding")
)
