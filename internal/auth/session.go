package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// DefaultSessionDuration is the default session lifetime.
const DefaultSessionDuration = 7 * 24 * time.Hour

// SessionIDLength is the number of random bytes used for session IDs.
const SessionIDLength = 32

// Session is a signed-in browser.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsValid returns true if the session is valid (not expired and has required fields).
func (s *Session) IsValid() bool {
	return s.ID != "" && s.UserID != "" && !s.IsExpired()
}

// TimeRemaining returns the duration until the session expires.
// Returns 0 if the session has already expired.
func (s *Session) TimeRemaining() time.Duration {
	remaining := time.Until(s.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SessionStore persists sessions until they expire.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by its ID.
	// Returns nil, nil if not found.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session by its ID.
	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes all sessions for a specific user.
	DeleteByUserID(ctx context.Context, userID string) error
}

func checkNewSession(session *Session) (time.Duration, error) {
	if session == nil || session.ID == "" || session.UserID == "" {
		return 0, ErrInvalidSession
	}
	ttl := session.TimeRemaining()
	if ttl <= 0 {
		return 0, ErrSessionExpired
	}
	return ttl, nil
}

// MemorySessionStore keeps sessions in process memory. Expired sessions are
// evicted by a background janitor.
type MemorySessionStore struct {
	c *gocache.Cache
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{c: gocache.New(DefaultSessionDuration, 10*time.Minute)}
}

func (s *MemorySessionStore) Create(_ context.Context, session *Session) error {
	ttl, err := checkNewSession(session)
	if err != nil {
		return err
	}
	cpy := *session
	if err := s.c.Add(session.ID, &cpy, ttl); err != nil {
		return ErrInvalidSession
	}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	v, ok := s.c.Get(id)
	if !ok {
		return nil, nil
	}
	session := *v.(*Session)
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	if _, ok := s.c.Get(id); !ok {
		return ErrSessionNotFound
	}
	s.c.Delete(id)
	return nil
}

func (s *MemorySessionStore) DeleteByUserID(_ context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	for id, item := range s.c.Items() {
		if item.Object.(*Session).UserID == userID {
			s.c.Delete(id)
		}
	}
	return nil
}

// Count returns the number of live sessions.
func (s *MemorySessionStore) Count() int { return s.c.ItemCount() }

// RedisSessionStore shares sessions between replicas. Each user also has a
// set of their session ids so sign-out everywhere is one round trip.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore uses client with keys under "tripplanner:session:".
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "tripplanner:session:"}
}

func (s *RedisSessionStore) key(id string) string { return s.prefix + id }
func (s *RedisSessionStore) userKey(uid string) string { return s.prefix + "user:" + uid }

func (s *RedisSessionStore) Create(ctx context.Context, session *Session) error {
	ttl, err := checkNewSession(session)
	if err != nil {
		return err
	}
	b, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return ErrInvalidSession
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.userKey(session.UserID), session.ID)
	pipe.Expire(ctx, s.userKey(session.UserID), DefaultSessionDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(b, &session); err != nil {
		return nil, ErrInvalidSession
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		return err
	}
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	if session != nil {
		s.client.SRem(ctx, s.userKey(session.UserID), id)
	}
	return nil
}

func (s *RedisSessionStore) DeleteByUserID(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, s.userKey(userID))
	return s.client.Del(ctx, keys...).Err()
}

// GenerateSessionID generates a cryptographically secure session ID.
func GenerateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// NewSession creates a session for userID lasting duration, or
// DefaultSessionDuration when duration is not positive.
func NewSession(userID string, duration time.Duration) (*Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
	}, nil
}
