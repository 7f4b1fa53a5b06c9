package domain

import (
	"net/http"
	"strings"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
)

// ActionMapper derives the capability a request demands from its method and
// path. The mapping is static configuration, not inference: workflow verbs in
// the final path segment take priority, admin-management surfaces demand the
// dedicated capability, and everything else degrades to read/write by method.
type ActionMapper struct {
	adminPrefixes []string
}

// NewActionMapper creates an ActionMapper. Paths under adminPrefixes (e.g.
// "/api/admins") demand the manage_admins capability regardless of method.
func NewActionMapper(adminPrefixes []string) *ActionMapper {
	return &ActionMapper{adminPrefixes: adminPrefixes}
}

// CapabilityFor returns the capability demanded by a method and path.
func (m *ActionMapper) CapabilityFor(method, path string) authDomain.Capability {
	for _, prefix := range m.adminPrefixes {
		if matchPrefix(path, prefix) {
			return authDomain.ManageAdminsCapability
		}
	}

	switch lastSegment(path) {
	case "approve":
		return authDomain.ApproveCapability
	case "reject":
		return authDomain.RejectCapability
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return authDomain.ReadCapability
	default:
		return authDomain.WriteCapability
	}
}

func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
