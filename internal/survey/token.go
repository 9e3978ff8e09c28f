package survey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the amount of randomness in an invite token (128 bits).
const TokenBytes = 16

// GenerateToken returns a new hex-encoded invite token.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// plausibleToken rejects input that cannot be a token without touching the
// store. Tokens imported from older systems are UUIDs or url-safe base64, so
// the check is on charset and length rather than exact hex form.
func plausibleToken(token string) bool {
	if len(token) < 16 || len(token) > 128 {
		return false
	}
	for _, c := range token {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
