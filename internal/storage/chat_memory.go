package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"tripplanner/internal/domain"
)

// ownedSession must be called with m.mu held.
func (m *MemoryStore) ownedSession(ownerID, sessionID string) (domain.ChatSession, error) {
	if err := requireOwner(ownerID); err != nil {
		return domain.ChatSession{}, err
	}
	s, ok := m.sessions[sessionID]
	if !ok || s.OwnerID != ownerID {
		return domain.ChatSession{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return s, nil
}

// createSessionLocked must be called with m.mu held for writing.
func (m *MemoryStore) createSessionLocked(ownerID, tripID, title string) (domain.ChatSession, error) {
	if tripID != "" {
		if _, err := m.ownedTrip(ownerID, tripID); err != nil {
			return domain.ChatSession{}, err
		}
	}
	now := m.now()
	s := domain.ChatSession{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		TripID:    tripID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[s.ID] = s
	m.messages[s.ID] = []domain.ChatMessage{}
	return s, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, ownerID, tripID, title string) (domain.ChatSession, error) {
	if err := requireOwner(ownerID); err != nil {
		return domain.ChatSession{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSessionLocked(ownerID, tripID, title)
}

func (m *MemoryStore) GetSession(_ context.Context, ownerID, sessionID string) (domain.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ownedSession(ownerID, sessionID)
}

func (m *MemoryStore) ListSessions(_ context.Context, ownerID string) ([]domain.ChatSession, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.ChatSession, 0)
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			result = append(result, s)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	return result, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, ownerID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.ownedSession(ownerID, sessionID); err != nil {
		return err
	}
	delete(m.sessions, sessionID)
	delete(m.messages, sessionID)
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, ownerID string, in domain.MessageInput) (domain.ChatMessage, error) {
	if err := requireOwner(ownerID); err != nil {
		return domain.ChatMessage{}, err
	}
	in, err := ValidateMessage(in)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var sess domain.ChatSession
	if in.SessionID == "" {
		sess, err = m.createSessionLocked(ownerID, in.TripID, domain.SessionTitle(in.Content))
	} else {
		sess, err = m.ownedSession(ownerID, in.SessionID)
	}
	if err != nil {
		return domain.ChatMessage{}, err
	}

	now := m.now()
	msgs := m.messages[sess.ID]
	// Keep created_at monotonic within the session.
	if n := len(msgs); n > 0 && now.Before(msgs[n-1].CreatedAt) {
		now = msgs[n-1].CreatedAt
	}
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Seq:       int64(len(msgs) + 1),
		Role:      in.Role,
		Content:   in.Content,
		Type:      in.Type,
		Metadata:  append([]byte(nil), in.Metadata...),
		CreatedAt: now,
	}
	m.messages[sess.ID] = append(msgs, msg)
	sess.UpdatedAt = now
	m.sessions[sess.ID] = sess
	return msg, nil
}

func (m *MemoryStore) ListMessages(_ context.Context, ownerID, sessionID string) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.ownedSession(ownerID, sessionID); err != nil {
		return nil, err
	}
	return append([]domain.ChatMessage{}, m.messages[sessionID]...), nil
}

func (m *MemoryStore) RecentMessages(_ context.Context, ownerID, sessionID string, n int) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.ownedSession(ownerID, sessionID); err != nil {
		return nil, err
	}
	msgs := m.messages[sessionID]
	if n >= 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]domain.ChatMessage{}, msgs...), nil
}
