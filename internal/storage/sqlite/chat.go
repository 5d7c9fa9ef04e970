//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

const sessionColumns = `id, owner_id, trip_id, title, created_at, updated_at`

func scanSession(row scanner) (domain.ChatSession, error) {
	var s domain.ChatSession
	var tripID sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&s.ID, &s.OwnerID, &tripID, &s.Title, &createdAt, &updatedAt); err != nil {
		return domain.ChatSession{}, err
	}
	s.TripID = tripID.String
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

func getSession(ctx context.Context, q querier, ownerID, sessionID string) (domain.ChatSession, error) {
	if ownerID == "" {
		return domain.ChatSession{}, storage.ErrNotAuthenticated
	}
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = ? AND owner_id = ?`, sessionID, ownerID)
	s, err := scanSession(row)
	if err != nil {
		return domain.ChatSession{}, notFound(err, "session "+sessionID)
	}
	return s, nil
}

func (s *Store) createSession(ctx context.Context, q querier, ownerID, tripID, title string) (domain.ChatSession, error) {
	if tripID != "" {
		if _, err := getTrip(ctx, q, ownerID, tripID); err != nil {
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
	_, err := q.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, owner_id, trip_id, title, message_count, created_at, updated_at) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		sess.ID, ownerID, nullString(tripID), title, formatTime(now), formatTime(now),
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.createSession(ctx, tx, ownerID, tripID, title)
		return err
	})
	return out, err
}

func (s *Store) GetSession(ctx context.Context, ownerID, sessionID string) (domain.ChatSession, error) {
	return getSession(ctx, s.db, ownerID, sessionID)
}

func (s *Store) ListSessions(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	if ownerID == "" {
		return nil, storage.ErrNotAuthenticated
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE owner_id = ? ORDER BY updated_at DESC, rowid DESC`, ownerID)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ? AND owner_id = ?`, sessionID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}
	return nil
}

// AppendMessage allocates the next seq by incrementing the session's
// message_count in the same transaction as the insert.
func (s *Store) AppendMessage(ctx context.Context, ownerID string, in domain.MessageInput) (domain.ChatMessage, error) {
	if ownerID == "" {
		return domain.ChatMessage{}, storage.ErrNotAuthenticated
	}
	in, err := storage.ValidateMessage(in)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	var msg domain.ChatMessage
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		sessionID := in.SessionID
		if sessionID == "" {
			sess, err := s.createSession(ctx, tx, ownerID, in.TripID, domain.SessionTitle(in.Content))
			if err != nil {
				return err
			}
			sessionID = sess.ID
		}

		// updated_at tracks the newest message, so taking the max keeps
		// created_at monotonic within the session.
		var seq int64
		var at string
		err := tx.QueryRowContext(ctx,
			`UPDATE chat_sessions SET updated_at = MAX(updated_at, ?), message_count = message_count + 1
              WHERE id = ? AND owner_id = ? RETURNING message_count, updated_at`,
			formatTime(s.now()), sessionID, ownerID,
		).Scan(&seq, &at)
		if err != nil {
			return notFound(err, "session "+sessionID)
		}
		now := parseTime(at)

		msg = domain.ChatMessage{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Seq:       seq,
			Role:      in.Role,
			Content:   in.Content,
			Type:      in.Type,
			CreatedAt: now,
		}
		var meta any
		if len(in.Metadata) > 0 {
			msg.Metadata = append([]byte(nil), in.Metadata...)
			meta = string(in.Metadata)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_messages (id, session_id, seq, role, content, message_type, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, sessionID, seq, msg.Role, msg.Content, msg.Type, meta, formatTime(now),
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

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var meta sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Content, &m.Type, &meta, &createdAt); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			m.Metadata = []byte(meta.String)
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

const messageColumns = `id, session_id, seq, role, content, message_type, metadata, created_at`

func (s *Store) ListMessages(ctx context.Context, ownerID, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := getSession(ctx, s.db, ownerID, sessionID); err != nil {
		return nil, err
	}
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC, seq ASC`, sessionID)
}

func (s *Store) RecentMessages(ctx context.Context, ownerID, sessionID string, n int) ([]domain.ChatMessage, error) {
	if _, err := getSession(ctx, s.db, ownerID, sessionID); err != nil {
		return nil, err
	}
	if n < 0 {
		return s.ListMessages(ctx, ownerID, sessionID)
	}
	msgs, err := s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE session_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?`, sessionID, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
