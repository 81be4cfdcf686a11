package validate

import "errors"

var (
	// ErrInvalidAspect is returned when an aspect string does not match the
	// expected reverse-DNS-style format (lowercase labels separated by dots).
	ErrInvalidAspect = errors.New("invalid aspect")

	// ErrAccessDenied is returned when a requested filename resolves outside
	// the configured data root after canonicalization (path traversal).
	ErrAccessDenied = errors.New("access denied")
)
