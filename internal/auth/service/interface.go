// Package service provides credential issuance and verification services.
package service

import (
	"context"
	"time"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
)

// TokenService issues and verifies signed bearer credentials.
//
// Verification is a pure function over the token and the server-held secret:
// no I/O happens on the request hot path.
type TokenService interface {
	// Issue creates a signed credential for the subject with the given role
	// and time-to-live. Returns the encoded token and its decoded claims.
	Issue(subject string, role authDomain.Role, ttl time.Duration) (string, *authDomain.Claims, error)

	// Verify validates the token signature and expiry and extracts the claims.
	// Fails with domain.ErrInvalidCredential on any malformed, expired, or
	// signature-mismatched token.
	Verify(token string) (*authDomain.Claims, error)
}

// SecretResolver resolves the token signing secret at startup.
// Implementations must fail closed: no secret, no process.
type SecretResolver interface {
	Resolve(ctx context.Context) ([]byte, error)
}
