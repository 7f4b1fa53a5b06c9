package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
	apperrors "github.com/allisson/gatekeeper/internal/errors"
)

// tokenClaims is the wire representation of a credential payload.
type tokenClaims struct {
	Role authDomain.Role `json:"role"`
	jwt.RegisteredClaims
}

// tokenService implements TokenService using HMAC-SHA256 signed JWTs.
type tokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with the given symmetric secret.
// Returns an error if the secret is empty; configuration validation should have
// rejected that long before this point, but the constructor still fails closed.
func NewTokenService(secret []byte) (TokenService, error) {
	if len(secret) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, "signing secret must not be empty")
	}
	return &tokenService{secret: secret, now: time.Now}, nil
}

// Issue creates a signed credential for the subject with the given role and TTL.
func (t *tokenService) Issue(
	subject string,
	role authDomain.Role,
	ttl time.Duration,
) (string, *authDomain.Claims, error) {
	if subject == "" {
		return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput, "subject must not be empty")
	}
	if ttl <= 0 {
		return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput, "token ttl must be positive")
	}

	tokenID, err := uuid.NewV7()
	if err != nil {
		return "", nil, apperrors.Wrap(err, "failed to generate token id")
	}

	now := t.now().UTC()
	expiresAt := now.Add(ttl)

	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, apperrors.Wrap(err, "failed to sign token")
	}

	return encoded, &authDomain.Claims{
		Subject:   subject,
		Role:      role,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify validates the token signature and expiry and extracts the claims.
//
// Every failure mode collapses into domain.ErrInvalidCredential so callers
// cannot distinguish a tampered signature from an expired token; the raw token
// never appears in the returned error.
func (t *tokenService) Verify(token string) (*authDomain.Claims, error) {
	if token == "" {
		return nil, authDomain.ErrNoCredential
	}

	parsed, err := jwt.ParseWithClaims(
		token,
		&tokenClaims{},
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return nil, authDomain.ErrInvalidCredential
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, authDomain.ErrInvalidCredential
	}

	// A garbage jti is tolerated: it only loses audit granularity.
	tokenID, _ := uuid.Parse(claims.ID)

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return &authDomain.Claims{
		Subject:   claims.Subject,
		Role:      claims.Role,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
