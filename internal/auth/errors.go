// Package auth provides password, session and bearer-token authentication
// for tripplanner, and carries the caller's identity through request
// contexts.
package auth

import "errors"

var (
	// ErrInvalidCredentials means the email or password did not match.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidPassword means a password failed verification or policy.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrSessionNotFound indicates the session was not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired indicates the session has expired.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidSession indicates the session is invalid.
	ErrInvalidSession = errors.New("invalid session")

	// ErrInvalidToken covers malformed, expired and badly signed bearer
	// tokens alike.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnauthenticated means neither a session nor a token was presented.
	ErrUnauthenticated = errors.New("not authenticated")
)
