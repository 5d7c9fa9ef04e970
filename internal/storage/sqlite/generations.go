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

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (s *Store) RecordGeneration(ctx context.Context, rec domain.GenerationRecord) (domain.GenerationRecord, error) {
	if rec.OwnerID == "" {
		return domain.GenerationRecord{}, storage.ErrNotAuthenticated
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_generations (id, owner_id, trip_id, kind, input, output, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, nullString(rec.TripID), rec.Kind, nullJSON(rec.Input), nullJSON(rec.Output), rec.Status, rec.Error,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return domain.GenerationRecord{}, fmt.Errorf("insert generation: %w", err)
	}
	return rec, nil
}

func (s *Store) ListGenerations(ctx context.Context, ownerID, tripID string) ([]domain.GenerationRecord, error) {
	if _, err := getTrip(ctx, s.db, ownerID, tripID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, trip_id, kind, input, output, status, error, created_at
           FROM ai_generations WHERE trip_id = ? AND owner_id = ?
          ORDER BY created_at DESC, rowid DESC`, tripID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.GenerationRecord{}
	for rows.Next() {
		var g domain.GenerationRecord
		var trip, input, output sql.NullString
		var createdAt string
		if err := rows.Scan(&g.ID, &g.OwnerID, &trip, &g.Kind, &input, &output, &g.Status, &g.Error, &createdAt); err != nil {
			return nil, err
		}
		g.TripID = trip.String
		if input.Valid {
			g.Input = []byte(input.String)
		}
		if output.Valid {
			g.Output = []byte(output.String)
		}
		g.CreatedAt = parseTime(createdAt)
		out = append(out, g)
	}
	return out, rows.Err()
}
