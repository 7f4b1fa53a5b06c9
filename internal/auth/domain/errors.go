package domain

import (
	"github.com/allisson/gatekeeper/internal/errors"
)

// Authentication errors.
var (
	// ErrInvalidCredential indicates a malformed, expired, or
	// signature-mismatched token. Resolves to 401 at the edge.
	ErrInvalidCredential = errors.Wrap(errors.ErrUnauthorized, "invalid credential")

	// ErrNoCredential indicates no token was presented at all.
	ErrNoCredential = errors.ErrUnauthorized
)
