//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

const tripColumns = `id, owner_id, title, destination, start_date, end_date, budget, travelers, status, preferences, share_id, created_at, updated_at`

func scanTrip(row scanner) (domain.Trip, error) {
	var t domain.Trip
	var start, end, share sql.NullString
	var budget, prefs, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Destination, &start, &end, &budget, &t.Travelers, &t.Status, &prefs, &share, &createdAt, &updatedAt); err != nil {
		return domain.Trip{}, err
	}
	t.StartDate = parseNullTime(start)
	t.EndDate = parseNullTime(end)
	t.Budget = parseDecimal(budget)
	t.ShareID = share.String
	if err := json.Unmarshal([]byte(prefs), &t.Preferences); err != nil {
		return domain.Trip{}, fmt.Errorf("decode preferences for trip %s: %w", t.ID, err)
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	t.Itinerary = []domain.DayPlan{}
	return t, nil
}

func (s *Store) CreateTrip(ctx context.Context, ownerID string, in domain.TripInput) (domain.Trip, error) {
	if ownerID == "" {
		return domain.Trip{}, storage.ErrNotAuthenticated
	}
	t, err := storage.NewTrip(ownerID, in)
	if err != nil {
		return domain.Trip{}, err
	}
	prefs, err := marshalJSON(t.Preferences)
	if err != nil {
		return domain.Trip{}, err
	}
	now := s.now()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trips (`+tripColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, ownerID, t.Title, t.Destination, nullTime(t.StartDate), nullTime(t.EndDate), t.Budget.String(),
		t.Travelers, t.Status, prefs, nil, formatTime(now), formatTime(now),
	)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("insert trip: %w", storage.WrapIfConflict(err))
	}
	return t, nil
}

func getTrip(ctx context.Context, q querier, ownerID, tripID string) (domain.Trip, error) {
	if ownerID == "" {
		return domain.Trip{}, storage.ErrNotAuthenticated
	}
	row := q.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ? AND owner_id = ?`, tripID, ownerID)
	t, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, notFound(err, "trip "+tripID)
	}
	return t, nil
}

func (s *Store) GetTrip(ctx context.Context, ownerID, tripID string) (domain.Trip, error) {
	t, err := getTrip(ctx, s.db, ownerID, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	if t.Itinerary, err = loadItinerary(ctx, s.db, t.ID); err != nil {
		return domain.Trip{}, err
	}
	return t, nil
}

func (s *Store) GetTripByShareID(ctx context.Context, shareID string) (domain.Trip, error) {
	if shareID == "" {
		return domain.Trip{}, storage.ErrNotFound
	}
	t, err := scanTrip(s.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE share_id = ?`, shareID))
	if err != nil {
		return domain.Trip{}, notFound(err, "shared trip "+shareID)
	}
	if t.Itinerary, err = loadItinerary(ctx, s.db, t.ID); err != nil {
		return domain.Trip{}, err
	}
	return t, nil
}

func (s *Store) UpdateTrip(ctx context.Context, ownerID, tripID string, patch domain.TripPatch) (domain.Trip, error) {
	var out domain.Trip
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTrip(ctx, tx, ownerID, tripID)
		if err != nil {
			return err
		}
		patch.Apply(&t)
		if err := storage.ValidateTrip(t); err != nil {
			return err
		}
		prefs, err := marshalJSON(t.Preferences)
		if err != nil {
			return err
		}
		t.UpdatedAt = s.now()
		_, err = tx.ExecContext(ctx,
			`UPDATE trips SET title=?, destination=?, start_date=?, end_date=?, budget=?, travelers=?, status=?, preferences=?, share_id=?, updated_at=? WHERE id=?`,
			t.Title, t.Destination, nullTime(t.StartDate), nullTime(t.EndDate), t.Budget.String(), t.Travelers, t.Status, prefs,
			nullString(t.ShareID), formatTime(t.UpdatedAt), t.ID,
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

// ReplaceItinerary deletes and re-inserts the itinerary in one transaction,
// so a failed insert leaves the previous itinerary in place.
func (s *Store) ReplaceItinerary(ctx context.Context, ownerID, tripID string, days []domain.DayPlan) error {
	norm, err := storage.NormalizeItinerary(days)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrip(ctx, tx, ownerID, tripID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM itinerary_days WHERE trip_id = ?`, tripID); err != nil {
			return fmt.Errorf("delete itinerary: %w", err)
		}
		for _, d := range norm {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO itinerary_days (trip_id, day_number, date, notes, budget) VALUES (?, ?, ?, ?, ?)`,
				tripID, d.Day, d.Date, d.Notes, d.Budget.String(),
			)
			if err != nil {
				return fmt.Errorf("insert day %d: %w", d.Day, err)
			}
			dayID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for i, a := range d.Activities {
				if err := insertActivity(ctx, tx, dayID, i, a); err != nil {
					return fmt.Errorf("insert day %d activity %d: %w", d.Day, i+1, err)
				}
			}
		}
		_, err := tx.ExecContext(ctx, `UPDATE trips SET updated_at = ? WHERE id = ?`, formatTime(s.now()), tripID)
		return err
	})
}

func insertActivity(ctx context.Context, tx *sql.Tx, dayID int64, pos int, a domain.Activity) error {
	loc, err := marshalJSON(a.Location)
	if err != nil {
		return err
	}
	images, err := marshalJSON(nonNil(a.Images))
	if err != nil {
		return err
	}
	tips, err := marshalJSON(nonNil(a.Tips))
	if err != nil {
		return err
	}
	var rating any
	if a.Rating != nil {
		rating = *a.Rating
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO activities (day_id, position, name, type, description, time_slot, duration, cost, rating, location, booking_url, images, tips)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dayID, pos, a.Name, a.Type, a.Description, a.TimeSlot, a.Duration, a.Cost.String(), rating, loc, a.BookingURL, images, tips,
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
	rows, err := q.QueryContext(ctx,
		`SELECT id, day_number, date, notes, budget FROM itinerary_days WHERE trip_id = ? ORDER BY day_number ASC`, tripID)
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

	rows, err = q.QueryContext(ctx,
		`SELECT a.day_id, a.name, a.type, a.description, a.time_slot, a.duration, a.cost, a.rating, a.location, a.booking_url, a.images, a.tips
           FROM activities a JOIN itinerary_days d ON d.id = a.day_id
          WHERE d.trip_id = ?
          ORDER BY d.day_number ASC, a.position ASC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dayID int64
		var a domain.Activity
		var cost, loc, images, tips string
		var rating sql.NullFloat64
		if err := rows.Scan(&dayID, &a.Name, &a.Type, &a.Description, &a.TimeSlot, &a.Duration, &cost, &rating, &loc, &a.BookingURL, &images, &tips); err != nil {
			return nil, err
		}
		a.Cost = parseDecimal(cost)
		if rating.Valid {
			r := rating.Float64
			a.Rating = &r
		}
		if err := json.Unmarshal([]byte(loc), &a.Location); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		_ = json.Unmarshal([]byte(images), &a.Images)
		_ = json.Unmarshal([]byte(tips), &a.Tips)
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

func (s *Store) ListTrips(ctx context.Context, ownerID string) ([]domain.Trip, error) {
	if ownerID == "" {
		return nil, storage.ErrNotAuthenticated
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		trips = append(trips, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range trips {
		if trips[i].Itinerary, err = loadItinerary(ctx, s.db, trips[i].ID); err != nil {
			return nil, err
		}
	}
	return trips, nil
}

func (s *Store) DeleteTrip(ctx context.Context, ownerID, tripID string) error {
	if ownerID == "" {
		return storage.ErrNotAuthenticated
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM trips WHERE id = ? AND owner_id = ?`, tripID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) TripStats(ctx context.Context, ownerID string) (domain.TripStats, error) {
	if ownerID == "" {
		return domain.TripStats{}, storage.ErrNotAuthenticated
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE owner_id = ?`, ownerID)
	if err != nil {
		return domain.TripStats{}, err
	}
	defer rows.Close()
	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return domain.TripStats{}, err
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return domain.TripStats{}, err
	}
	now := s.now()
	return storage.StatsFor(trips, now.Year(), int(now.Month())), nil
}
