package deploy

import "errors"

// Domain errors for deployment operations.
var (
	// ErrFeatureNotLicensed is returned when deploying a feature the
	// tenant holds no active grant for. A configuration error: the
	// caller should have granted first.
	ErrFeatureNotLicensed = errors.New("deploy.feature_not_licensed")

	// ErrFeatureNotInCatalog is returned when the feature has no
	// catalog entry to expand.
	ErrFeatureNotInCatalog = errors.New("deploy.feature_not_in_catalog")

	// ErrInvalidCatalog is returned for catalog definitions that fail
	// validation (empty feature codes, malformed permission codes).
	ErrInvalidCatalog = errors.New("deploy.invalid_catalog")
)
