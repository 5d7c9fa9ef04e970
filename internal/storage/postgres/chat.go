//go:build postgres

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

const sessionColumns = `id, owner_id, trip_id, title, created_at, updated_at`

func scanSession(row pgx.Row) (domain.ChatSession, error) {
	var s domain.ChatSession
	var tripID *string
	if err := row.Scan(&s.ID, &s.OwnerID, &tripID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.ChatSession{}, err
	}
	if tripID != nil {
		s.TripID = *tripID
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func getSession(ctx context.Context, q querier, ownerID, sessionID string) (domain.ChatSession, error) {
	if ownerID == "" {
		return domain.ChatSession{}, storage.ErrNotAuthenticated
	}
	s, err := scanSession(q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1 AND owner_id = $2`, sessionID, ownerID))
	if err != nil {
		return domain.ChatSession{}, notFound(err, "session "+sessionID)
	}
	return s, nil
}

func (s *Store) createSession(ctx context.Context, tx pgx.Tx, ownerID, tripID, title string) (domain.ChatSession, error) {
	if tripID != "" {
		if _, err := getTrip(ctx, tx, ownerID, tripID, false); err != nil {
			return domain.ChatSession{}, err
		}
	}
	now := s.now()
	sess := domain.ChatSession{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		TripID:    tripID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO chat_sessions (id, owner_id, trip_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, ownerID, nullString(tripID), title, now, now,
	)
	if err != nil {
		return domain.ChatSession{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *Store) CreateSession(ctx context.Context, ownerID, tripID, title string) (domain.ChatSession, error) {
	if ownerID == "" {
		return domain.ChatSession{}, storage.ErrNotAuthenticated
	}
	var out domain.ChatSession
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = s.createSession(ctx, tx, ownerID, tripID, title)
		return err
	})
	return out, err
}

func (s *Store) GetSession(ctx context.Context, ownerID, sessionID string) (domain.ChatSession, error) {
	return getSession(ctx, s.pool, ownerID, sessionID)
}

func (s *Store) ListSessions(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	if ownerID == "" {
		return nil, storage.ErrNotAuthenticated
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE owner_id = $1 ORDER BY updated_at DESC, seq DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.ChatSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSession(ctx context.Context, ownerID, sessionID string) error {
	if ownerID == "" {
		return storage.ErrNotAuthenticated
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1 AND owner_id = $2`, sessionID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}
	return nil
}

// AppendMessage allocates seq from the session row, whose lock serializes
// concurrent appends to the same session.
func (s *Store) AppendMessage(ctx context.Context, ownerID string, in domain.MessageInput) (domain.ChatMessage, error) {
	if ownerID == "" {
		return domain.ChatMessage{}, storage.ErrNotAuthenticated
	}
	in, err := storage.ValidateMessage(in)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	var msg domain.ChatMessage
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		sessionID := in.SessionID
		if sessionID == "" {
			sess, err := s.createSession(ctx, tx, ownerID, in.TripID, domain.SessionTitle(in.Content))
			if err != nil {
				return err
			}
			sessionID = sess.ID
		}

		msg = domain.ChatMessage{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      in.Role,
			Content:   in.Content,
			Type:      in.Type,
		}
		err := tx.QueryRow(ctx,
			`UPDATE chat_sessions SET updated_at = GREATEST(updated_at, $1), message_count = message_count + 1
              WHERE id = $2 AND owner_id = $3 RETURNING message_count, updated_at`,
			s.now(), sessionID, ownerID,
		).Scan(&msg.Seq, &msg.CreatedAt)
		if err != nil {
			return notFound(err, "session "+sessionID)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		var meta *string
		if len(in.Metadata) > 0 {
			msg.Metadata = append([]byte(nil), in.Metadata...)
			m := string(in.Metadata)
			meta = &m
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO chat_messages (id, session_id, seq, role, content, message_type, metadata, created_at)
             VALUES ($1, $2, $3, $4, $5, $6, $7::json, $8)`,
			msg.ID, sessionID, msg.Seq, string(msg.Role), msg.Content, string(msg.Type), meta, msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

const messageColumns = `id, session_id, seq, role, content, message_type, metadata::text, created_at`

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]domain.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var role, typ string
		var meta *string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &role, &m.Content, &typ, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		m.Type = domain.MessageType(typ)
		if meta != nil && *meta != "" {
			m.Metadata = []byte(*meta)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListMessages(ctx context.Context, ownerID, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := getSession(ctx, s.pool, ownerID, sessionID); err != nil {
		return nil, err
	}
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE session_id = $1 ORDER BY created_at, seq`, sessionID)
}

func (s *Store) RecentMessages(ctx context.Context, ownerID, sessionID string, n int) ([]domain.ChatMessage, error) {
	if n < 0 {
		return s.ListMessages(ctx, ownerID, sessionID)
	}
	if _, err := getSession(ctx, s.pool, ownerID, sessionID); err != nil {
		return nil, err
	}
	return s.queryMessages(ctx,
		`SELECT * FROM (
            SELECT `+messageColumns+` FROM chat_messages WHERE session_id = $1 ORDER BY created_at DESC, seq DESC LIMIT $2
         ) recent ORDER BY created_at, seq`, sessionID, n)
}
