package license

import "errors"

// Domain errors for licensing operations.
var (
	// ErrGrantNotFound is returned when no grant exists for a
	// (tenant, feature) pair.
	ErrGrantNotFound = errors.New("license.grant_not_found")

	// ErrInvalidGrant is returned for malformed grants (missing tenant,
	// empty feature code, expiry before start).
	ErrInvalidGrant = errors.New("license.invalid_grant")

	// ErrNotifierClosed is returned when publishing to a closed notifier.
	ErrNotifierClosed = errors.New("license.notifier_closed")
)
