package domain

import (
	"encoding/json"
	"slices"

	apperrors "github.com/allisson/gatekeeper/internal/errors"
	"github.com/allisson/gatekeeper/internal/validation"
)

// RolePolicies maps each role to its capability set. The table is loaded once
// at process start and treated as immutable for the process lifetime; role
// checks must go through IsAllowed instead of inline conditionals in handlers.
//
// Each role's set is independently authoritative. Admin happens to be a
// superset of manager in the default table, but resolution never assumes
// any ordering between roles.
type RolePolicies map[Role][]Capability

// DefaultRolePolicies returns the built-in role to capability-set table.
func DefaultRolePolicies() RolePolicies {
	return RolePolicies{
		RoleAdmin:   {WildcardCapability},
		RoleManager: {ReadCapability, WriteCapability, ApproveCapability, RejectCapability},
		RoleViewer:  {ReadCapability},
	}
}

// IsAllowed reports whether the role's capability set contains the capability
// or the wildcard. An unknown role resolves to the viewer set rather than
// failing, so the check fails safe instead of failing open.
func (p RolePolicies) IsAllowed(role Role, capability Capability) bool {
	if capability == "" {
		return false
	}

	capabilities, ok := p[role]
	if !ok {
		capabilities = p[RoleViewer]
	}

	return slices.Contains(capabilities, capability) ||
		slices.Contains(capabilities, WildcardCapability)
}

// KnowsRole reports whether the role is present in the table. Used by token
// issuance to refuse minting credentials for roles that resolve by fallback.
func (p RolePolicies) KnowsRole(role Role) bool {
	_, ok := p[role]
	return ok
}

// Validate checks the table for structural problems: empty table, invalid role
// names, empty or unknown capability lists. Returns ErrInvalidInput-wrapped
// errors suitable for surfacing as a configuration failure at startup.
func (p RolePolicies) Validate() error {
	if len(p) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "role policy table must not be empty")
	}

	if _, ok := p[RoleViewer]; !ok {
		return apperrors.Wrap(
			apperrors.ErrInvalidInput,
			"role policy table must define the viewer fallback role",
		)
	}

	for role, capabilities := range p {
		if err := validation.RoleName(string(role)); err != nil {
			return validation.WrapValidationError(err)
		}
		if len(capabilities) == 0 {
			return apperrors.Wrap(
				apperrors.ErrInvalidInput,
				"role "+string(role)+" has an empty capability set",
			)
		}
		for _, capability := range capabilities {
			if !slices.Contains(KnownCapabilities, capability) {
				return apperrors.Wrap(
					apperrors.ErrInvalidInput,
					"role "+string(role)+" grants unknown capability "+string(capability),
				)
			}
		}
	}

	return nil
}

// ParseRolePolicies decodes a JSON role policy document, e.g.
//
//	{"admin":["*"],"manager":["read","write","approve","reject"],"viewer":["read"]}
//
// and validates it. Used to override the default table from configuration.
func ParseRolePolicies(document string) (RolePolicies, error) {
	var policies RolePolicies
	if err := json.Unmarshal([]byte(document), &policies); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed role policy document")
	}
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	return policies, nil
}
