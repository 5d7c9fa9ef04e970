//go:build postgres

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

const tripColumns = `id, owner_id, title, destination, start_date, end_date, budget::text, travelers, status, preferences, share_id, created_at, updated_at`

func scanTrip(row pgx.Row) (domain.Trip, error) {
	var t domain.Trip
	var budget string
	var prefs []byte
	var share *string
	var status string
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Destination, &t.StartDate, &t.EndDate, &budget,
		&t.Travelers, &status, &prefs, &share, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Trip{}, err
	}
	t.Status = domain.TripStatus(status)
	t.Budget = parseDecimal(budget)
	if share != nil {
		t.ShareID = *share
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &t.Preferences); err != nil {
			return domain.Trip{}, fmt.Errorf("decode preferences for trip %s: %w", t.ID, err)
		}
	}
	t.StartDate = utcPtr(t.StartDate)
	t.EndDate = utcPtr(t.EndDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.Itinerary = []domain.DayPlan{}
	return t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *Store) CreateTrip(ctx context.Context, ownerID string, in domain.TripInput) (domain.Trip, error) {
	if ownerID == "" {
		return domain.Trip{}, storage.ErrNotAuthenticated
	}
	t, err := storage.NewTrip(ownerID, in)
	if err != nil {
		return domain.Trip{}, err
	}
	prefs, err := json.Marshal(t.Preferences)
	if err != nil {
		return domain.Trip{}, err
	}
	now := s.now()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err = s.pool.Exec(ctx,
		`INSERT INTO trips (id, owner_id, title, destination, start_date, end_date, budget, travelers, status, preferences, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, ownerID, t.Title, t.Destination, t.StartDate, t.EndDate, t.Budget.String(), t.Travelers, string(t.Status), string(prefs), now, now,
	)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("insert trip: %w", storage.WrapIfConflict(err))
	}
	return t, nil
}

func getTrip(ctx context.Context, q querier, ownerID, tripID string, forUpdate bool) (domain.Trip, error) {
	if ownerID == "" {
		return domain.Trip{}, storage.ErrNotAuthenticated
	}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 AND owner_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTrip(q.QueryRow(ctx, query, tripID, ownerID))
	if err != nil {
		return domain.Trip{}, notFound(err, "trip "+tripID)
	}
	return t, nil
}

func (s *Store) GetTrip(ctx context.Context, ownerID, tripID string) (domain.Trip, error) {
	t, err := getTrip(ctx, s.pool, ownerID, tripID, false)
	if err != nil {
		return domain.Trip{}, err
	}
	if t.Itinerary, err = loadItinerary(ctx, s.pool, t.ID); err != nil {
		return domain.Trip{}, err
	}
	return t, nil
}

func (s *Store) GetTripByShareID(ctx context.Context, shareID string) (domain.Trip, error) {
	if shareID == "" {
		return domain.Trip{}, storage.ErrNotFound
	}
	t, err := scanTrip(s.pool.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE share_id = $1`, shareID))
	if err != nil {
		return domain.Trip{}, notFound(err, "shared trip "+shareID)
	}
	if t.Itinerary, err = loadItinerary(ctx, s.pool, t.ID); err != nil {
		return domain.Trip{}, err
	}
	return t, nil
}

func (s *Store) UpdateTrip(ctx context.Context, ownerID, tripID string, patch domain.TripPatch) (domain.Trip, error) {
	var out domain.Trip
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		t, err := getTrip(ctx, tx, ownerID, tripID, true)
		if err != nil {
			return err
		}
		patch.Apply(&t)
		if err := storage.ValidateTrip(t); err != nil {
			return err
		}
		prefs, err := json.Marshal(t.Preferences)
		if err != nil {
			return err
		}
		t.UpdatedAt = s.now()
		_, err = tx.Exec(ctx,
			`UPDATE trips SET title=$1, destination=$2, start_date=$3, end_date=$4, budget=$5, travelers=$6, status=$7,
                    preferences=$8, share_id=$9, updated_at=$10 WHERE id=$11`,
			t.Title, t.Destination, t.StartDate, t.EndDate, t.Budget.String(), t.Travelers, string(t.Status),
			string(prefs), nullString(t.ShareID), t.UpdatedAt, t.ID,
		)
		if err != nil {
			return fmt.Errorf("update trip: %w", storage.WrapIfConflict(err))
		}
		if t.Itinerary, err = loadItinerary(ctx, tx, t.ID); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// ReplaceItinerary swaps the itinerary in one transaction; the trip row is
// locked so concurrent replacements serialize.
func (s *Store) ReplaceItinerary(ctx context.Context, ownerID, tripID string, days []domain.DayPlan) error {
	norm, err := storage.NormalizeItinerary(days)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := getTrip(ctx, tx, ownerID, tripID, true); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM itinerary_days WHERE trip_id = $1`, tripID); err != nil {
			return fmt.Errorf("delete itinerary: %w", err)
		}
		for _, d := range norm {
			var dayID int64
			err := tx.QueryRow(ctx,
				`INSERT INTO itinerary_days (trip_id, day_number, date, notes, budget) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				tripID, d.Day, d.Date, d.Notes, d.Budget.String(),
			).Scan(&dayID)
			if err != nil {
				return fmt.Errorf("insert day %d: %w", d.Day, err)
			}
			for i, a := range d.Activities {
				if err := insertActivity(ctx, tx, dayID, i, a); err != nil {
					return fmt.Errorf("insert day %d activity %d: %w", d.Day, i+1, err)
				}
			}
		}
		_, err := tx.Exec(ctx, `UPDATE trips SET updated_at = $1 WHERE id = $2`, s.now(), tripID)
		return err
	})
}

func insertActivity(ctx context.Context, tx pgx.Tx, dayID int64, pos int, a domain.Activity) error {
	loc, err := json.Marshal(a.Location)
	if err != nil {
		return err
	}
	images, err := json.Marshal(nonNil(a.Images))
	if err != nil {
		return err
	}
	tips, err := json.Marshal(nonNil(a.Tips))
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO activities (day_id, position, name, type, description, time_slot, duration, cost, rating, location, booking_url, images, tips)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		dayID, pos, a.Name, string(a.Type), a.Description, a.TimeSlot, a.Duration, a.Cost.String(), a.Rating,
		string(loc), a.BookingURL, string(images), string(tips),
	)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func loadItinerary(ctx context.Context, q querier, tripID string) ([]domain.DayPlan, error) {
	rows, err := q.Query(ctx,
		`SELECT id, day_number, date, notes, budget::text FROM itinerary_days WHERE trip_id = $1 ORDER BY day_number`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	days := []domain.DayPlan{}
	index := map[int64]int{}
	for rows.Next() {
		var id int64
		var d domain.DayPlan
		var budget string
		if err := rows.Scan(&id, &d.Day, &d.Date, &d.Notes, &budget); err != nil {
			rows.Close()
			return nil, err
		}
		d.Budget = parseDecimal(budget)
		d.Activities = []domain.Activity{}
		index[id] = len(days)
		days = append(days, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return days, nil
	}

	rows, err = q.Query(ctx,
		`SELECT a.day_id, a.name, a.type, a.description, a.time_slot, a.duration, a.cost::text, a.rating, a.location, a.booking_url, a.images, a.tips
           FROM activities a JOIN itinerary_days d ON d.id = a.day_id
          WHERE d.trip_id = $1
          ORDER BY d.day_number, a.position`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dayID int64
		var a domain.Activity
		var typ, cost string
		var loc, images, tips []byte
		if err := rows.Scan(&dayID, &a.Name, &typ, &a.Description, &a.TimeSlot, &a.Duration, &cost, &a.Rating, &loc, &a.BookingURL, &images, &tips); err != nil {
			return nil, err
		}
		a.Type = domain.ActivityType(typ)
		a.Cost = parseDecimal(cost)
		if err := json.Unmarshal(loc, &a.Location); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		_ = json.Unmarshal(images, &a.Images)
		_ = json.Unmarshal(tips, &a.Tips)
		if len(a.Images) == 0 {
			a.Images = nil
		}
		if len(a.Tips) == 0 {
			a.Tips = nil
		}
		i := index[dayID]
		days[i].Activities = append(days[i].Activities, a)
	}
	return days, rows.Err()
}

func (s *Store) queryTrips(ctx context.Context, query string, args ...any) ([]domain.Trip, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *Store) ListTrips(ctx context.Context, ownerID string) ([]domain.Trip, error) {
	if ownerID == "" {
		return nil, storage.ErrNotAuthenticated
	}
	trips, err := s.queryTrips(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE owner_id = $1 ORDER BY created_at DESC, seq DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range trips {
		if trips[i].Itinerary, err = loadItinerary(ctx, s.pool, trips[i].ID); err != nil {
			return nil, err
		}
	}
	return trips, nil
}

func (s *Store) DeleteTrip(ctx context.Context, ownerID, tripID string) error {
	if ownerID == "" {
		return storage.ErrNotAuthenticated
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM trips WHERE id = $1 AND owner_id = $2`, tripID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) TripStats(ctx context.Context, ownerID string) (domain.TripStats, error) {
	if ownerID == "" {
		return domain.TripStats{}, storage.ErrNotAuthenticated
	}
	trips, err := s.queryTrips(ctx, `SELECT `+tripColumns+` FROM trips WHERE owner_id = $1`, ownerID)
	if err != nil {
		return domain.TripStats{}, err
	}
	now := s.now()
	return storage.StatsFor(trips, now.Year(), int(now.Month())), nil
}
