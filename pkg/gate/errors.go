package gate

import (
	"errors"
	"fmt"
)

// Configuration errors, surfaced loudly: with graceful failure disabled
// they propagate from Check, otherwise they deny with their message as
// the reason.
var (
	// ErrEmptyGateConfig is returned by gates constructed with an empty
	// permission or role list; such a gate is misconfigured, not
	// vacuously true.
	ErrEmptyGateConfig = errors.New("gate.empty_config")

	// ErrMissingTenant is returned when a tenant-scoped gate is checked
	// against a principal without a tenant.
	ErrMissingTenant = errors.New("gate.missing_tenant")
)

// Denial reasons shared across gates.
const (
	ReasonInternalError    = "internal error"
	ReasonNotAuthenticated = "authentication required"
)

// AccessDeniedError is the expected outcome of a failed Verify. It is
// never logged as an error by this package; callers decide what a denial
// means (403, redirect, hidden UI).
type AccessDeniedError struct {
	Reason   string
	Fallback string
}

func (e *AccessDeniedError) Error() string {
	if e.Reason == "" {
		return "access denied"
	}
	return fmt.Sprintf("access denied: %s", e.Reason)
}

// IsAccessDenied reports whether err is a policy denial.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
