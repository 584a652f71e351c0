// Package store owns every durable row of the gateway. Other packages read
// and mutate users, keys, sessions and usage logs only through Store.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Store errors.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("store: email already registered")
)

// Store is the credential store backed by gorm.
type Store struct {
	db *gorm.DB
}

// New wraps conn.
func New(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

// DB exposes the connection for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateEmail) {
		return err
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

// isUniqueViolation recognizes unique constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
