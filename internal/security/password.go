package security

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost defines the bcrypt work factor.
const bcryptCost = 12

// Password length bounds. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// ErrWeakPassword is returned for passwords outside the accepted bounds.
var ErrWeakPassword = errors.New("password must be 8 to 72 bytes long")

// ValidatePassword checks the length bounds of a plaintext password.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength || len(password) > MaxPasswordBytes {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
