// Package auth implements the shared-credential login and the session token
// that replaces the client-side logged-in flag.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginDisabled      = errors.New("login is not configured")
)

// PasswordAuthenticator checks a single shared username/password pair. Only
// the bcrypt hash of the password is kept in memory.
type PasswordAuthenticator struct {
	username string
	hash     []byte
}

// NewPasswordAuthenticator hashes password once at startup. An empty password
// yields an authenticator that rejects every login.
func NewPasswordAuthenticator(username, password string) (*PasswordAuthenticator, error) {
	a := &PasswordAuthenticator{username: username}
	if password == "" {
		return a, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	a.hash = hash
	return a, nil
}

// Enabled reports whether a password was configured.
func (a *PasswordAuthenticator) Enabled() bool {
	return a != nil && len(a.hash) > 0
}

// Authenticate verifies the credential pair.
func (a *PasswordAuthenticator) Authenticate(username, password string) error {
	if !a.Enabled() {
		return ErrLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
