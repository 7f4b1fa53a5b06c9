// Package http provides the gatekeeper middleware chain: security headers,
// route classification, rate limiting, authentication, and authorization.
package http

import (
	"context"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
)

// claimsKey is a context key type for storing verified credential claims.
type claimsKey struct{}

// routeClassGinKey stores the request's RouteClass in the gin context so the
// chain classifies each path exactly once.
const routeClassGinKey = "gatekeeper/route_class"

// credentialGinKey caches the credential resolution result in the gin context
// so the rate-limit and authentication middlewares don't verify twice.
const credentialGinKey = "gatekeeper/credential"

// WithClaims stores verified claims in the context.
// Called by the authentication middleware after successful verification.
func WithClaims(ctx context.Context, claims *authDomain.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaims retrieves verified claims from the context.
// Returns (claims, true) if present, or (nil, false) if the request never
// passed authentication (e.g. an unprotected path).
func GetClaims(ctx context.Context) (*authDomain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*authDomain.Claims)
	return claims, ok
}

// credentialResult is the cached outcome of extracting and verifying the
// request credential. A nil Claims with a nil Err means no credential was
// presented.
type credentialResult struct {
	Claims *authDomain.Claims
	Err    error
}
