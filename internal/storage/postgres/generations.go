//go:build postgres

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

func nullJSON(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_generations (id, owner_id, trip_id, kind, input, output, status, error, created_at)
         VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9)`,
		rec.ID, rec.OwnerID, nullString(rec.TripID), string(rec.Kind), nullJSON(rec.Input), nullJSON(rec.Output),
		string(rec.Status), rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return domain.GenerationRecord{}, fmt.Errorf("insert generation: %w", err)
	}
	return rec, nil
}

func (s *Store) ListGenerations(ctx context.Context, ownerID, tripID string) ([]domain.GenerationRecord, error) {
	if _, err := getTrip(ctx, s.pool, ownerID, tripID, false); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, trip_id, kind, input, output, status, error, created_at
           FROM ai_generations WHERE trip_id = $1 AND owner_id = $2
          ORDER BY created_at DESC, seq DESC`, tripID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.GenerationRecord{}
	for rows.Next() {
		var g domain.GenerationRecord
		var trip *string
		var kind, status string
		var input, output []byte
		if err := rows.Scan(&g.ID, &g.OwnerID, &trip, &kind, &input, &output, &status, &g.Error, &g.CreatedAt); err != nil {
			return nil, err
		}
		if trip != nil {
			g.TripID = *trip
		}
		g.Kind = domain.GenerationKind(kind)
		g.Status = domain.GenerationStatus(status)
		g.Input = input
		g.Output = output
		g.CreatedAt = g.CreatedAt.UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}
