// Package invite issues and checks client portal invite tokens.
package invite

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenBytes is the token entropy used when none is configured.
const DefaultTokenBytes = 16

// minTokenBytes keeps tokens from being guessable.
const minTokenBytes = 8

// NewToken returns a random hex token built from n bytes of entropy.
func NewToken(n int) (string, error) {
	if n == 0 {
		n = DefaultTokenBytes
	}
	if n < minTokenBytes {
		return "", fmt.Errorf("token size %d is below the minimum of %d bytes", n, minTokenBytes)
	}
	// bcrypt only reads the first 72 bytes of input
	if n*2 > 72 {
		return "", fmt.Errorf("token size %d exceeds the maximum of 36 bytes", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash returns the bcrypt hash of a token.
func Hash(token string) (string, error) {
	if token == "" {
		return "", errors.New("token cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// Verify checks a token against a stored hash.
func Verify(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	// A valid bcrypt hash is exactly 60 characters
	if len(hash) != 60 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// emailRegex is a loose pattern for well-formed email addresses.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail reports whether email looks like a deliverable address.
// Contacts accept any string; callers opt in to this check.
func ValidateEmail(email string) bool {
	if email == "" {
		return false
	}
	return emailRegex.MatchString(email)
}
