// Package storage provides the trip, chat, profile and generation stores for
// tripplanner. The in-memory implementation lives here; SQL backends live in
// the sqlite and postgres subpackages.
package storage

import (
	"context"

	"tripplanner/internal/domain"
)

// TripStore persists trips and their itineraries. Every method is scoped to
// an owner; an empty owner yields ErrNotAuthenticated and an id the owner does
// not hold yields ErrNotFound.
type TripStore interface {
	CreateTrip(ctx context.Context, ownerID string, in domain.TripInput) (domain.Trip, error)
	// GetTrip returns the trip with its itinerary loaded.
	GetTrip(ctx context.Context, ownerID, tripID string) (domain.Trip, error)
	// GetTripByShareID returns a shared trip regardless of owner.
	GetTripByShareID(ctx context.Context, shareID string) (domain.Trip, error)
	// UpdateTrip merges the non-nil patch fields and bumps updated_at.
	UpdateTrip(ctx context.Context, ownerID, tripID string, patch domain.TripPatch) (domain.Trip, error)
	// ReplaceItinerary removes every prior day of the trip and stores days,
	// renumbered 1..len(days) in the given order.
	ReplaceItinerary(ctx context.Context, ownerID, tripID string, days []domain.DayPlan) error
	// ListTrips returns the owner's trips newest first by creation time.
	ListTrips(ctx context.Context, ownerID string) ([]domain.Trip, error)
	// DeleteTrip removes the trip and its itinerary.
	DeleteTrip(ctx context.Context, ownerID, tripID string) error
	TripStats(ctx context.Context, ownerID string) (domain.TripStats, error)
}

// ChatStore persists chat sessions and their ordered messages.
type ChatStore interface {
	CreateSession(ctx context.Context, ownerID, tripID, title string) (domain.ChatSession, error)
	GetSession(ctx context.Context, ownerID, sessionID string) (domain.ChatSession, error)
	// ListSessions returns the owner's sessions, most recently active first.
	ListSessions(ctx context.Context, ownerID string) ([]domain.ChatSession, error)
	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, ownerID, sessionID string) error
	// AppendMessage appends to the end of the session, creating the session
	// first when in.SessionID is empty.
	AppendMessage(ctx context.Context, ownerID string, in domain.MessageInput) (domain.ChatMessage, error)
	// ListMessages returns the session's messages oldest first.
	ListMessages(ctx context.Context, ownerID, sessionID string) ([]domain.ChatMessage, error)
	// RecentMessages returns the last n messages, oldest first.
	RecentMessages(ctx context.Context, ownerID, sessionID string, n int) ([]domain.ChatMessage, error)
}

// ProfileStore persists application users.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error)
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error)
	GetProfileByCustomerID(ctx context.Context, customerID string) (domain.Profile, error)
	GetProfileByOIDC(ctx context.Context, issuer, subject string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error)
}

// GenerationStore logs AI generation requests.
type GenerationStore interface {
	RecordGeneration(ctx context.Context, rec domain.GenerationRecord) (domain.GenerationRecord, error)
	// ListGenerations returns the trip's generations newest first.
	ListGenerations(ctx context.Context, ownerID, tripID string) ([]domain.GenerationRecord, error)
}

// Store is the complete persistence surface used by the service.
type Store interface {
	TripStore
	ChatStore
	ProfileStore
	GenerationStore
	// Close releases resources held by the store
	Close() error
}

// HealthCheck provides database health checking.
type HealthCheck interface {
	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Stats returns database connection pool statistics.
	Stats() *DBStats
}

// DBStats contains database connection pool statistics.
type DBStats struct {
	// MaxOpenConnections is the maximum number of open connections.
	MaxOpenConnections int

	// OpenConnections is the current number of open connections.
	OpenConnections int

	// InUse is the number of connections currently in use.
	InUse int

	// Idle is the number of idle connections.
	Idle int
}
