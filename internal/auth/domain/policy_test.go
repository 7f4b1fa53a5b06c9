package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/gatekeeper/internal/errors"
)

func TestRolePolicies_IsAllowed(t *testing.T) {
	policies := DefaultRolePolicies()

	tests := []struct {
		name       string
		role       Role
		capability Capability
		expected   bool
	}{
		{
			name:       "Admin_Read",
			role:       RoleAdmin,
			capability: ReadCapability,
			expected:   true,
		},
		{
			name:       "Admin_ManageAdmins",
			role:       RoleAdmin,
			capability: ManageAdminsCapability,
			expected:   true,
		},
		{
			name:       "Manager_Approve",
			role:       RoleManager,
			capability: ApproveCapability,
			expected:   true,
		},
		{
			name:       "Manager_Reject",
			role:       RoleManager,
			capability: RejectCapability,
			expected:   true,
		},
		{
			name:       "Manager_ManageAdmins_Denied",
			role:       RoleManager,
			capability: ManageAdminsCapability,
			expected:   false,
		},
		{
			name:       "Viewer_Read",
			role:       RoleViewer,
			capability: ReadCapability,
			expected:   true,
		},
		{
			name:       "Viewer_Write_Denied",
			role:       RoleViewer,
			capability: WriteCapability,
			expected:   false,
		},
		{
			name:       "Viewer_Approve_Denied",
			role:       RoleViewer,
			capability: ApproveCapability,
			expected:   false,
		},
		{
			name:       "UnknownRole_FallsBackToViewer_Read",
			role:       Role("auditor"),
			capability: ReadCapability,
			expected:   true,
		},
		{
			name:       "UnknownRole_FallsBackToViewer_Write_Denied",
			role:       Role("auditor"),
			capability: WriteCapability,
			expected:   false,
		},
		{
			name:       "EmptyCapability_Denied",
			role:       RoleAdmin,
			capability: Capability(""),
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policies.IsAllowed(tt.role, tt.capability))
		})
	}
}

func TestRolePolicies_IsAllowed_NoOrderingBetweenRoles(t *testing.T) {
	// A custom table where manager is not a subset of admin.
	policies := RolePolicies{
		RoleAdmin:   {ReadCapability},
		RoleManager: {ApproveCapability},
		RoleViewer:  {ReadCapability},
	}

	assert.False(t, policies.IsAllowed(RoleAdmin, ApproveCapability))
	assert.True(t, policies.IsAllowed(RoleManager, ApproveCapability))
	assert.False(t, policies.IsAllowed(RoleManager, ReadCapability))
}

func TestRolePolicies_KnowsRole(t *testing.T) {
	policies := DefaultRolePolicies()

	assert.True(t, policies.KnowsRole(RoleAdmin))
	assert.True(t, policies.KnowsRole(RoleViewer))
	assert.False(t, policies.KnowsRole(Role("auditor")))
}

func TestRolePolicies_Validate(t *testing.T) {
	tests := []struct {
		name        string
		policies    RolePolicies
		expectError bool
	}{
		{
			name:        "Valid_DefaultTable",
			policies:    DefaultRolePolicies(),
			expectError: false,
		},
		{
			name:        "Invalid_EmptyTable",
			policies:    RolePolicies{},
			expectError: true,
		},
		{
			name: "Invalid_MissingViewerFallback",
			policies: RolePolicies{
				RoleAdmin: {WildcardCapability},
			},
			expectError: true,
		},
		{
			name: "Invalid_EmptyCapabilitySet",
			policies: RolePolicies{
				RoleViewer:  {ReadCapability},
				RoleManager: {},
			},
			expectError: true,
		},
		{
			name: "Invalid_UnknownCapability",
			policies: RolePolicies{
				RoleViewer: {Capability("teleport")},
			},
			expectError: true,
		},
		{
			name: "Invalid_RoleName",
			policies: RolePolicies{
				RoleViewer:    {ReadCapability},
				Role("ADMIN"): {WildcardCapability},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policies.Validate()
			if tt.expectError {
				assert.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseRolePolicies(t *testing.T) {
	t.Run("Valid_Document", func(t *testing.T) {
		document := `{"admin":["*"],"manager":["read","write","approve","reject"],"viewer":["read"]}`

		policies, err := ParseRolePolicies(document)
		require.NoError(t, err)

		assert.True(t, policies.IsAllowed(RoleAdmin, ManageAdminsCapability))
		assert.True(t, policies.IsAllowed(RoleManager, ApproveCapability))
		assert.False(t, policies.IsAllowed(RoleViewer, WriteCapability))
	})

	t.Run("Invalid_MalformedJSON", func(t *testing.T) {
		_, err := ParseRolePolicies(`{"admin":`)
		assert.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})

	t.Run("Invalid_FailsValidation", func(t *testing.T) {
		_, err := ParseRolePolicies(`{"admin":["*"]}`)
		assert.Error(t, err)
	})
}
