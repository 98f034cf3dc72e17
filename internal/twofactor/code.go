// Package twofactor generates and verifies the emailed one-time codes used
// as the second login factor.
package twofactor

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random 6-digit code, zero-padded.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate one-time code: %w", err)
	}
	return fmt.Sprintf("%06d", n), nil
}

// HashCode returns the hex SHA-256 of a code. Only the hash is stored.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// VerifyCode compares a submitted code against a stored hash in constant
// time.
func VerifyCode(code, storedHash string) bool {
	submitted := HashCode(code)
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(storedHash)) == 1
}
