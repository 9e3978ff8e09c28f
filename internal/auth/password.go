package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost applies to new admin password hashes. Hashes stored at another
// cost are upgraded on the next successful login.
const BcryptCost = 12

var (
	decoyOnce sync.Once
	decoyHash []byte
)

// HashPassword hashes an admin password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword returns nil when password matches hash.
func VerifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// NeedsRehash reports whether hash was made at a cost other than BcryptCost.
// Unparseable hashes report false; VerifyPassword already rejects them.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return cost != BcryptCost
}

// burnPasswordCheck spends one bcrypt comparison for a login that matched no
// account, so unknown logins take as long as wrong passwords.
func burnPasswordCheck(password string) {
	decoyOnce.Do(func() {
		decoyHash, _ = bcrypt.GenerateFromPassword([]byte("nr01desk-decoy"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(password))
}
