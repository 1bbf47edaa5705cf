package types

import "errors"

// Domain errors shared across packages
var (
	// ErrContractViolation marks a caller bug. It is never retried.
	ErrContractViolation = errors.New("contract violation")

	ErrInvalidVersion     = errors.New("invalid version")
	ErrInvalidArtifactory = errors.New("invalid artifactory")
)
