package storage

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tripplanner/internal/domain"
)

// NewTrip applies creation defaults to in and validates the result. The id
// and timestamps are left for the caller to fill.
func NewTrip(ownerID string, in domain.TripInput) (domain.Trip, error) {
	t := domain.Trip{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(in.Title),
		Destination: strings.TrimSpace(in.Destination),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Budget:      decimal.Zero,
		Travelers:   in.Travelers,
		Status:      in.Status,
		Preferences: in.Preferences,
		Itinerary:   []domain.DayPlan{},
	}
	if t.Title == "" {
		t.Title = domain.DefaultTripTitle
	}
	if in.Budget != nil {
		t.Budget = *in.Budget
	}
	if t.Travelers == 0 {
		t.Travelers = 1
	}
	if t.Status == "" {
		t.Status = domain.TripStatusPlanning
	}
	if err := ValidateTrip(t); err != nil {
		return domain.Trip{}, err
	}
	return t, nil
}

// ValidateTrip checks the trip field invariants.
func ValidateTrip(t domain.Trip) error {
	if t.Budget.IsNegative() {
		return fmt.Errorf("budget must not be negative: %w", ErrValidation)
	}
	if t.Travelers < 1 {
		return fmt.Errorf("travelers must be at least 1: %w", ErrValidation)
	}
	if !domain.IsValidTripStatus(t.Status) {
		return fmt.Errorf("unknown status %q: %w", t.Status, ErrValidation)
	}
	if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(*t.StartDate) {
		return fmt.Errorf("end date before start date: %w", ErrValidation)
	}
	return nil
}

// NormalizeItinerary validates days and returns a copy numbered 1..len(days)
// in the given order. Activity order within each day is kept.
func NormalizeItinerary(days []domain.DayPlan) ([]domain.DayPlan, error) {
	out := make([]domain.DayPlan, len(days))
	for i, d := range days {
		if d.Budget.IsNegative() {
			return nil, fmt.Errorf("day %d budget must not be negative: %w", i+1, ErrValidation)
		}
		acts := make([]domain.Activity, len(d.Activities))
		for j, a := range d.Activities {
			if strings.TrimSpace(a.Name) == "" {
				return nil, fmt.Errorf("day %d activity %d: name required: %w", i+1, j+1, ErrValidation)
			}
			if !domain.IsValidActivityType(a.Type) {
				return nil, fmt.Errorf("day %d activity %d: unknown type %q: %w", i+1, j+1, a.Type, ErrValidation)
			}
			if a.Duration <= 0 {
				return nil, fmt.Errorf("day %d activity %d: duration must be positive: %w", i+1, j+1, ErrValidation)
			}
			if a.Cost.IsNegative() {
				return nil, fmt.Errorf("day %d activity %d: cost must not be negative: %w", i+1, j+1, ErrValidation)
			}
			acts[j] = cloneActivity(a)
		}
		d.Day = i + 1
		d.Activities = acts
		out[i] = d
	}
	return out, nil
}

func cloneActivity(a domain.Activity) domain.Activity {
	if a.Rating != nil {
		r := *a.Rating
		a.Rating = &r
	}
	a.Images = append([]string(nil), a.Images...)
	a.Tips = append([]string(nil), a.Tips...)
	return a
}

// CloneTrip returns a deep copy of t.
func CloneTrip(t domain.Trip) domain.Trip {
	if t.StartDate != nil {
		d := *t.StartDate
		t.StartDate = &d
	}
	if t.EndDate != nil {
		d := *t.EndDate
		t.EndDate = &d
	}
	t.Preferences.Interests = append([]string(nil), t.Preferences.Interests...)
	t.Preferences.DietaryRestrictions = append([]string(nil), t.Preferences.DietaryRestrictions...)
	days := make([]domain.DayPlan, len(t.Itinerary))
	for i, d := range t.Itinerary {
		acts := make([]domain.Activity, len(d.Activities))
		for j, a := range d.Activities {
			acts[j] = cloneActivity(a)
		}
		d.Activities = acts
		days[i] = d
	}
	t.Itinerary = days
	return t
}

// ValidateMessage checks and defaults a message input.
func ValidateMessage(in domain.MessageInput) (domain.MessageInput, error) {
	if in.Role != domain.RoleUser && in.Role != domain.RoleAssistant {
		return in, fmt.Errorf("unknown role %q: %w", in.Role, ErrValidation)
	}
	if in.Type == "" {
		in.Type = domain.MessageText
	}
	if !domain.IsValidMessageType(in.Type) {
		return in, fmt.Errorf("unknown message type %q: %w", in.Type, ErrValidation)
	}
	return in, nil
}

// NormalizeProfile lowercases the email, defaults the plan and validates.
func NormalizeProfile(p domain.Profile) (domain.Profile, error) {
	p.Email = NormalizeEmail(p.Email)
	if p.Email == "" {
		return p, fmt.Errorf("email required: %w", ErrValidation)
	}
	if p.Plan == "" {
		p.Plan = domain.PlanFree
	}
	if !domain.IsValidPlan(p.Plan) {
		return p, fmt.Errorf("unknown plan %q: %w", p.Plan, ErrValidation)
	}
	return p, nil
}

// NormalizeEmail returns the canonical form used for email lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StatsFor computes dashboard statistics over trips. year and month name
// the current calendar month.
func StatsFor(trips []domain.Trip, year int, month int) domain.TripStats {
	st := domain.TripStats{TotalBudget: decimal.Zero, AverageBudget: decimal.Zero}
	for _, t := range trips {
		st.TotalTrips++
		st.TotalBudget = st.TotalBudget.Add(t.Budget)
		switch t.Status {
		case domain.TripStatusCompleted:
			st.Completed++
		case domain.TripStatusPlanning:
			st.Upcoming++
		}
		if t.CreatedAt.Year() == year && int(t.CreatedAt.Month()) == month {
			st.CreatedThisMonth++
		}
	}
	if st.TotalTrips > 0 {
		st.AverageBudget = st.TotalBudget.Div(decimal.NewFromInt(int64(st.TotalTrips))).Round(2)
	}
	return st
}
