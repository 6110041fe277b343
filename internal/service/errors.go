package service

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// status codes; everything else surfaces as an internal error.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the caller supplied unusable input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates the operation conflicts with the record's
	// current state (e.g., editing a published note as a draft).
	ErrConflict = errors.New("conflict")

	// ErrFeatureNotLicensed indicates the current license tier does not
	// include the requested feature.
	ErrFeatureNotLicensed = errors.New("feature not licensed")

	// ErrLimitExceeded indicates a tier resource limit has been reached.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrStorageDisabled indicates object storage is not configured.
	ErrStorageDisabled = errors.New("object storage is not configured")
)
