package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the storage layer.
// HTTP handlers should use errors.Is() to map these to appropriate HTTP status codes.
var (
	// ErrNotFound indicates the requested resource does not exist for the caller.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthenticated indicates no owning user could be resolved.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrConflict indicates the operation conflicts with existing state
	// (e.g., a duplicate email).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates the input failed validation
	// (e.g., a negative budget).
	ErrValidation = errors.New("validation error")
)

// WrapIfConflict wraps a database error as ErrConflict if it represents a
// unique constraint violation. This detects UNIQUE errors from SQLite and
// duplicate key errors from PostgreSQL.
func WrapIfConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "duplicate") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return ErrNotAuthenticated
	}
	return nil
}
