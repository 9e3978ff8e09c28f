package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrInvalidAssessmentID is returned when an assessment id doesn't match the required format
	ErrInvalidAssessmentID = errors.New("assessment id may contain only letters, digits, '.', '_' and '-'")

	// ErrAssessmentIDLength is returned when an assessment id is empty or too long
	ErrAssessmentIDLength = errors.New("assessment id must be 1-64 characters")

	ErrEmailRequired = errors.New("email is required")
	ErrEmailTooLong  = errors.New("email is too long")
	ErrEmailInvalid  = errors.New("invalid email address")

	ErrNameRequired = errors.New("name is required")
	ErrNameTooLong  = errors.New("name must be at most 200 characters")

	ErrUsernameTooShort = errors.New("username must be at least 3 characters")
	ErrUsernameInvalid  = errors.New("username may contain only letters, digits, '.', '_' and '-'")

	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrPasswordUppercase = errors.New("password must contain an uppercase letter")
	ErrPasswordDigit     = errors.New("password must contain a digit")

	// assessmentIDRegex accepts ids such as NR01-2025-A or acme.q3_2025
	assessmentIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	usernameRegex     = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// NormalizeAssessmentID trims surrounding whitespace. Case is preserved.
func NormalizeAssessmentID(id string) string {
	return strings.TrimSpace(id)
}

// ValidateAssessmentID checks an assessment id: 1-64 characters, starting
// with a letter or digit.
func ValidateAssessmentID(id string) error {
	id = NormalizeAssessmentID(id)
	if id == "" || len(id) > 64 {
		return ErrAssessmentIDLength
	}
	if !assessmentIDRegex.MatchString(id) {
		return ErrInvalidAssessmentID
	}
	return nil
}

// NormalizeEmail trims whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates an email address using net/mail.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > 320 {
		return ErrEmailTooLong
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrEmailInvalid
	}
	return nil
}

// ValidateName checks a person or client name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(name) > 200 {
		return ErrNameTooLong
	}
	return nil
}

// ValidateUsername checks an admin username.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return ErrUsernameTooShort
	}
	if !usernameRegex.MatchString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// ValidatePassword enforces the admin password policy.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	var upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return ErrPasswordUppercase
	}
	if !digit {
		return ErrPasswordDigit
	}
	return nil
}
