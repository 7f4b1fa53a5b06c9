package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/allisson/gatekeeper/internal/app"
	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
	"github.com/allisson/gatekeeper/internal/config"
)

// RunCheckAccess evaluates the authorization decision the gateway would make
// for a role, method, and path, without sending a request. Useful for
// debugging policy tables before rolling them out.
func RunCheckAccess(
	ctx context.Context,
	roleName string,
	method string,
	path string,
	format string,
	io IOTuple,
) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must be absolute: %s", path)
	}
	method = strings.ToUpper(method)

	policies, err := container.RolePolicies()
	if err != nil {
		return fmt.Errorf("failed to load role policies: %w", err)
	}

	role := authDomain.Role(roleName)
	class := container.Classifier().Classify(path)
	capability := container.ActionMapper().CapabilityFor(method, path)

	allowed := !class.Protected || policies.IsAllowed(role, capability)
	decision := "allowed"
	if !allowed {
		decision = "forbidden"
	}

	if format == "json" {
		outputJSON(map[string]any{
			"role":       string(role),
			"known_role": policies.KnowsRole(role),
			"method":     method,
			"path":       path,
			"protected":  class.Protected,
			"api":        class.API,
			"capability": string(capability),
			"decision":   decision,
		}, io.Writer)
		return nil
	}

	_, _ = fmt.Fprintf(io.Writer, "Decision: %s\n", decision)
	_, _ = fmt.Fprintf(io.Writer, "Protected: %t\n", class.Protected)
	_, _ = fmt.Fprintf(io.Writer, "Capability: %s\n", capability)
	if !policies.KnowsRole(role) {
		_, _ = fmt.Fprintf(io.Writer, "Note: role %q is not in the policy table; the viewer fallback applies\n", role)
	}

	return nil
}
