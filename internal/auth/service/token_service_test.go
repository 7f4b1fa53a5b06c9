package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
	apperrors "github.com/allisson/gatekeeper/internal/errors"
)

const testSecret = "test-secret-key-with-enough-bytes-for-hs256"

func newTestTokenService(t *testing.T) TokenService {
	t.Helper()
	tokenService, err := NewTokenService([]byte(testSecret))
	require.NoError(t, err)
	return tokenService
}

func TestNewTokenService_EmptySecret(t *testing.T) {
	_, err := NewTokenService(nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	tokenService := newTestTokenService(t)

	token, issued, err := tokenService.Issue("ops@example.com", authDomain.RoleManager, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotNil(t, issued)

	claims, err := tokenService.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, authDomain.RoleManager, claims.Role)
	assert.Equal(t, issued.TokenID, claims.TokenID)
	assert.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestTokenService_Issue_InvalidInput(t *testing.T) {
	tokenService := newTestTokenService(t)

	t.Run("EmptySubject", func(t *testing.T) {
		_, _, err := tokenService.Issue("", authDomain.RoleViewer, time.Hour)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})

	t.Run("NonPositiveTTL", func(t *testing.T) {
		_, _, err := tokenService.Issue("ops@example.com", authDomain.RoleViewer, 0)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})
}

func TestTokenService_Verify_EmptyToken(t *testing.T) {
	tokenService := newTestTokenService(t)

	_, err := tokenService.Verify("")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	assert.ErrorIs(t, err, authDomain.ErrNoCredential)
}

func TestTokenService_Verify_Expired(t *testing.T) {
	svc := &tokenService{secret: []byte(testSecret), now: time.Now}

	token, _, err := svc.Issue("ops@example.com", authDomain.RoleViewer, time.Minute)
	require.NoError(t, err)

	// Move the verifier's clock past the expiry.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = svc.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, authDomain.ErrInvalidCredential)
}

func TestTokenService_Verify_TamperedSignature(t *testing.T) {
	tokenService := newTestTokenService(t)

	token, _, err := tokenService.Issue("ops@example.com", authDomain.RoleAdmin, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]

	_, err = tokenService.Verify(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, authDomain.ErrInvalidCredential)
}

func TestTokenService_Verify_WrongSecret(t *testing.T) {
	issuer := newTestTokenService(t)
	verifier, err := NewTokenService([]byte("a-completely-different-secret-value"))
	require.NoError(t, err)

	token, _, err := issuer.Issue("ops@example.com", authDomain.RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, authDomain.ErrInvalidCredential)
}

func TestTokenService_Verify_RejectsUnexpectedSigningMethod(t *testing.T) {
	tokenService := newTestTokenService(t)

	// Token signed with "none" must never verify, even with a valid payload.
	claims := tokenClaims{
		Role: authDomain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tokenService.Verify(unsigned)
	require.Error(t, err)
	assert.ErrorIs(t, err, authDomain.ErrInvalidCredential)
}

func TestTokenService_Verify_MissingSubject(t *testing.T) {
	tokenService := newTestTokenService(t)

	claims := tokenClaims{
		Role: authDomain.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tokenService.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, authDomain.ErrInvalidCredential)
}

func TestTokenService_Verify_MissingExpiry(t *testing.T) {
	tokenService := newTestTokenService(t)

	claims := tokenClaims{
		Role: authDomain.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "ops@example.com",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tokenService.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, authDomain.ErrInvalidCredential)
}

func TestTokenService_Verify_GarbageTokenID(t *testing.T) {
	tokenService := newTestTokenService(t)

	claims := tokenClaims{
		Role: authDomain.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "not-a-uuid",
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	// A bad jti only loses audit granularity; the credential still verifies.
	verified, err := tokenService.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", verified.Subject)
}
