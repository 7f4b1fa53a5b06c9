package domain

import (
	"time"

	"github.com/google/uuid"
)

// Claims holds the decoded, verified fields of a credential.
// Produced only by the token service after signature and expiry checks pass;
// nothing else in the system constructs Claims from untrusted input.
type Claims struct {
	Subject   string    // Authenticated subject identifier
	Role      Role      // Access tier carried by the credential
	TokenID   uuid.UUID // Unique token identifier (jti)
	IssuedAt  time.Time
	ExpiresAt time.Time
}
