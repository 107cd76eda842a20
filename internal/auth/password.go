package auth

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch = errors.New("new password must differ from the current one")
	ErrInvalidEmail     = errors.New("email is invalid")
)

const (
	minPasswordLength = 8
	maxEmailLength    = 254
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)

// ValidatePassword applies the backend's password policy before a signup,
// reset or change request is sent.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// ValidatePasswordChange also rejects reusing the current password
func ValidatePasswordChange(current, next string) error {
	if err := ValidatePassword(next); err != nil {
		return err
	}
	if current == next {
		return ErrPasswordMismatch
	}
	return nil
}

// IsValidEmail reports whether email looks deliverable
func IsValidEmail(email string) bool {
	if len(email) > maxEmailLength {
		return false
	}
	return emailRegex.MatchString(email)
}
