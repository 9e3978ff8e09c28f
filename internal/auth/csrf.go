package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
)

const (
	// CSRFTokenBytes is the number of random bytes for CSRF tokens
	CSRFTokenBytes = 32
)

// GenerateCSRFToken generates a cryptographically secure CSRF token
// Returns a base64url-encoded 32-byte random token
func GenerateCSRFToken() (string, error) {
	bytes := make([]byte, CSRFTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// ValidateCSRF validates the CSRF token using double-submit pattern
// Compares the token from the form/header with the token from the cookie
func ValidateCSRF(r *http.Request) error {
	cookieToken := GetCSRFCookie(r)
	if cookieToken == "" {
		return fmt.Errorf("missing CSRF cookie")
	}

	var formToken string
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch || r.Method == http.MethodDelete {
		formToken = r.Header.Get("X-CSRF-Token")
		if formToken == "" {
			formToken = r.FormValue(CSRFCookieName)
		}
	}

	if formToken == "" {
		return fmt.Errorf("missing CSRF token in request")
	}

	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) != 1 {
		return fmt.Errorf("CSRF token mismatch")
	}

	return nil
}
