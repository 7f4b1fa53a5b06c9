// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/gatekeeper/internal/errors"
)

var (
	// roleNameRegex constrains role names to lowercase identifiers.
	roleNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

	// subjectRegex constrains subject identifiers to printable token-safe characters.
	subjectRegex = regexp.MustCompile(`^[a-zA-Z0-9._@\-]{1,128}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// RoleName validates a role identifier: lowercase, starts with a letter,
// letters/digits/underscores only, at most 64 characters.
func RoleName(name string) error {
	return validation.Validate(name,
		validation.Required.Error("role name must not be empty"),
		validation.Match(roleNameRegex).
			Error("role name must be a lowercase identifier"),
	)
}

// Subject validates a credential subject identifier.
func Subject(subject string) error {
	return validation.Validate(subject,
		validation.Required.Error("subject must not be empty"),
		validation.Match(subjectRegex).
			Error("subject must contain only letters, digits, and ._@- characters"),
	)
}
