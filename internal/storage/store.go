package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripplanner/internal/domain"
)

// MemoryStore is an in-memory implementation of Store for quick start and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	trips map[string]domain.Trip
	// tripSeq records creation order so equal timestamps sort stably.
	tripSeq map[string]int64
	next    int64

	sessions map[string]domain.ChatSession
	messages map[string][]domain.ChatMessage // keyed by session ID

	profiles map[string]domain.Profile

	generations []domain.GenerationRecord

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:    make(map[string]domain.Trip),
		tripSeq:  make(map[string]int64),
		sessions: make(map[string]domain.ChatSession),
		messages: make(map[string][]domain.ChatMessage),
		profiles: make(map[string]domain.Profile),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateTrip(_ context.Context, ownerID string, in domain.TripInput) (domain.Trip, error) {
	if err := requireOwner(ownerID); err != nil {
		return domain.Trip{}, err
	}
	t, err := NewTrip(ownerID, in)
	if err != nil {
		return domain.Trip{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	m.next++
	m.trips[t.ID] = t
	m.tripSeq[t.ID] = m.next
	return CloneTrip(t), nil
}

// ownedTrip must be called with m.mu held.
func (m *MemoryStore) ownedTrip(ownerID, tripID string) (domain.Trip, error) {
	if err := requireOwner(ownerID); err != nil {
		return domain.Trip{}, err
	}
	t, ok := m.trips[tripID]
	if !ok || t.OwnerID != ownerID {
		return domain.Trip{}, fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
	}
	return t, nil
}

func (m *MemoryStore) GetTrip(_ context.Context, ownerID, tripID string) (domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.ownedTrip(ownerID, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	return CloneTrip(t), nil
}

func (m *MemoryStore) GetTripByShareID(_ context.Context, shareID string) (domain.Trip, error) {
	if shareID == "" {
		return domain.Trip{}, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.trips {
		if t.ShareID == shareID {
			return CloneTrip(t), nil
		}
	}
	return domain.Trip{}, fmt.Errorf("shared trip %s: %w", shareID, ErrNotFound)
}

func (m *MemoryStore) UpdateTrip(_ context.Context, ownerID, tripID string, patch domain.TripPatch) (domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.ownedTrip(ownerID, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	t = CloneTrip(t)
	patch.Apply(&t)
	if err := ValidateTrip(t); err != nil {
		return domain.Trip{}, err
	}
	t.UpdatedAt = m.now()
	m.trips[tripID] = t
	return CloneTrip(t), nil
}

func (m *MemoryStore) ReplaceItinerary(_ context.Context, ownerID, tripID string, days []domain.DayPlan) error {
	norm, err := NormalizeItinerary(days)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.ownedTrip(ownerID, tripID)
	if err != nil {
		return err
	}
	t.Itinerary = norm
	t.UpdatedAt = m.now()
	m.trips[tripID] = t
	return nil
}

func (m *MemoryStore) ListTrips(_ context.Context, ownerID string) ([]domain.Trip, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Trip, 0)
	for _, t := range m.trips {
		if t.OwnerID == ownerID {
			out = append(out, CloneTrip(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return m.tripSeq[out[i].ID] > m.tripSeq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryStore) DeleteTrip(_ context.Context, ownerID, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.ownedTrip(ownerID, tripID); err != nil {
		return err
	}
	delete(m.trips, tripID)
	delete(m.tripSeq, tripID)
	for id, s := range m.sessions {
		if s.TripID == tripID {
			s.TripID = ""
			m.sessions[id] = s
		}
	}
	return nil
}

func (m *MemoryStore) TripStats(ctx context.Context, ownerID string) (domain.TripStats, error) {
	trips, err := m.ListTrips(ctx, ownerID)
	if err != nil {
		return domain.TripStats{}, err
	}
	now := m.now()
	return StatsFor(trips, now.Year(), int(now.Month())), nil
}

func (m *MemoryStore) RecordGeneration(_ context.Context, rec domain.GenerationRecord) (domain.GenerationRecord, error) {
	if err := requireOwner(rec.OwnerID); err != nil {
		return domain.GenerationRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	m.generations = append(m.generations, rec)
	return rec, nil
}

func (m *MemoryStore) ListGenerations(_ context.Context, ownerID, tripID string) ([]domain.GenerationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.ownedTrip(ownerID, tripID); err != nil {
		return nil, err
	}
	out := make([]domain.GenerationRecord, 0)
	for i := len(m.generations) - 1; i >= 0; i-- {
		if g := m.generations[i]; g.TripID == tripID && g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	p, err := NormalizeProfile(p)
	if err != nil {
		return domain.Profile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.profiles {
		if existing.Email == p.Email {
			return domain.Profile{}, fmt.Errorf("email %s: %w", p.Email, ErrConflict)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := m.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.profiles[p.ID] = p
	return p, nil
}

func (m *MemoryStore) GetProfile(_ context.Context, id string) (domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *MemoryStore) findProfile(match func(domain.Profile) bool) (domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if match(p) {
			return p, nil
		}
	}
	return domain.Profile{}, ErrNotFound
}

func (m *MemoryStore) GetProfileByEmail(_ context.Context, email string) (domain.Profile, error) {
	email = NormalizeEmail(email)
	return m.findProfile(func(p domain.Profile) bool { return p.Email == email })
}

func (m *MemoryStore) GetProfileByCustomerID(_ context.Context, customerID string) (domain.Profile, error) {
	if customerID == "" {
		return domain.Profile{}, ErrNotFound
	}
	return m.findProfile(func(p domain.Profile) bool { return p.CustomerID == customerID })
}

func (m *MemoryStore) GetProfileByOIDC(_ context.Context, issuer, subject string) (domain.Profile, error) {
	if subject == "" {
		return domain.Profile{}, ErrNotFound
	}
	return m.findProfile(func(p domain.Profile) bool { return p.OIDCIssuer == issuer && p.OIDCSubject == subject })
}

func (m *MemoryStore) UpdateProfile(_ context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error) {
	if patch.Plan != nil && !domain.IsValidPlan(*patch.Plan) {
		return domain.Profile{}, fmt.Errorf("unknown plan %q: %w", *patch.Plan, ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Plan != nil {
		p.Plan = *patch.Plan
	}
	if patch.CustomerID != nil {
		p.CustomerID = *patch.CustomerID
	}
	p.UpdatedAt = m.now()
	m.profiles[id] = p
	return p, nil
}
