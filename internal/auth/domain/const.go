// Package domain defines authentication and authorization domain models.
// Implements role-based access control: every credential carries a role, and
// each role maps to a static capability set resolved at request time.
package domain

// Role identifies the access tier of an authenticated subject.
// The set is a closed enumeration; unknown roles resolve to viewer
// capabilities so that a bad credential can never widen access.
type Role string

const (
	// RoleAdmin has unrestricted access to the platform.
	RoleAdmin Role = "admin"

	// RoleManager can read, write, and settle approval workflows.
	RoleManager Role = "manager"

	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"
)

// Capability defines the types of operations that can be performed on resources.
// Capabilities are used in role policies to control authorization.
type Capability string

const (
	// ReadCapability allows reading resource data.
	ReadCapability Capability = "read"

	// WriteCapability allows creating or updating resource data.
	WriteCapability Capability = "write"

	// ApproveCapability allows approving workflow items (KYC, settlements, refunds).
	ApproveCapability Capability = "approve"

	// RejectCapability allows rejecting workflow items.
	RejectCapability Capability = "reject"

	// ManageAdminsCapability allows managing platform administrator accounts.
	ManageAdminsCapability Capability = "manage_admins"

	// WildcardCapability matches every capability (admin mode).
	WildcardCapability Capability = "*"
)

// KnownCapabilities lists every capability a role policy may grant.
var KnownCapabilities = []Capability{
	ReadCapability,
	WriteCapability,
	ApproveCapability,
	RejectCapability,
	ManageAdminsCapability,
	WildcardCapability,
}
