package domain

import "errors"

// Structural input errors. These fail fast and are never swallowed.
var (
	// ErrMalformedTransaction is returned when required transaction fields
	// are missing or invalid.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrInvalidJurisdiction is returned for unsupported or malformed
	// jurisdiction codes and configurations.
	ErrInvalidJurisdiction = errors.New("invalid jurisdiction")
)
