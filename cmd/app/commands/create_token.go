package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/allisson/gatekeeper/internal/app"
	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
	"github.com/allisson/gatekeeper/internal/config"
	"github.com/allisson/gatekeeper/internal/validation"
)

// RunCreateToken issues a signed credential for an admin subject.
// Refuses roles absent from the policy table: a credential for an unknown role
// would silently resolve to the viewer fallback at request time, which is
// almost never what the operator meant.
//
// Requirements: SIGNING_SECRET (or KMS settings) must be configured.
func RunCreateToken(
	ctx context.Context,
	subject string,
	roleName string,
	ttl time.Duration,
	format string,
	io IOTuple,
) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	if err := validation.Subject(subject); err != nil {
		return fmt.Errorf("invalid subject: %w", validation.WrapValidationError(err))
	}

	policies, err := container.RolePolicies()
	if err != nil {
		return fmt.Errorf("failed to load role policies: %w", err)
	}

	role := authDomain.Role(roleName)
	if !policies.KnowsRole(role) {
		return fmt.Errorf("unknown role: %s", roleName)
	}

	tokenService, err := container.TokenService(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	if ttl <= 0 {
		ttl = cfg.AuthTokenExpiration
	}

	token, claims, err := tokenService.Issue(subject, role, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	if format == "json" {
		outputJSON(map[string]string{
			"token":      token,
			"subject":    claims.Subject,
			"role":       string(claims.Role),
			"token_id":   claims.TokenID.String(),
			"expires_at": claims.ExpiresAt.Format(time.RFC3339),
		}, io.Writer)
		return nil
	}

	_, _ = fmt.Fprintln(io.Writer, "\nToken issued successfully!")
	_, _ = fmt.Fprintf(io.Writer, "Subject: %s\n", claims.Subject)
	_, _ = fmt.Fprintf(io.Writer, "Role: %s\n", claims.Role)
	_, _ = fmt.Fprintf(io.Writer, "Expires: %s\n", claims.ExpiresAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(io.Writer, "Token: %s\n", token)
	_, _ = fmt.Fprintln(io.Writer, "\nIMPORTANT: Treat the token as a credential. Do not log or share it.")

	return nil
}
