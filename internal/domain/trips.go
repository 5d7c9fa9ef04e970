package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripStatusPlanning  TripStatus = "planning"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// ValidTripStatuses lists all valid trip statuses.
var ValidTripStatuses = []TripStatus{
	TripStatusPlanning,
	TripStatusCompleted,
	TripStatusCancelled,
}

// IsValidTripStatus reports whether s is a known trip status.
func IsValidTripStatus(s TripStatus) bool {
	for _, valid := range ValidTripStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// ActivityType classifies an itinerary activity.
type ActivityType string

const (
	ActivityAttraction ActivityType = "attraction"
	ActivityExperience ActivityType = "experience"
	ActivityTour       ActivityType = "tour"
	ActivityRest       ActivityType = "rest"
	ActivityMeal       ActivityType = "meal"
	ActivityTransport  ActivityType = "transport"
)

// ValidActivityTypes lists all valid activity types.
var ValidActivityTypes = []ActivityType{
	ActivityAttraction,
	ActivityExperience,
	ActivityTour,
	ActivityRest,
	ActivityMeal,
	ActivityTransport,
}

// IsValidActivityType reports whether t is a known activity type.
func IsValidActivityType(t ActivityType) bool {
	for _, valid := range ValidActivityTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// DefaultTripTitle is used when a trip is created without a title.
const DefaultTripTitle = "New Trip"

// Location is a named point. It has no identity of its own.
type Location struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	PlaceID string  `json:"place_id,omitempty"`
}

// HasCoordinates reports whether the location carries a usable lat/lng pair.
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lng != 0
}

// Preferences captures how a traveler likes to travel.
type Preferences struct {
	BudgetTier          string   `json:"budget_tier,omitempty"` // budget, mid-range, luxury
	TravelStyle         string   `json:"travel_style,omitempty"`
	Interests           []string `json:"interests,omitempty"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	AccommodationType   string   `json:"accommodation_type,omitempty"`
	TransportPreference string   `json:"transport_preference,omitempty"`
}

// IsZero reports whether no preference has been set.
func (p Preferences) IsZero() bool {
	return p.BudgetTier == "" && p.TravelStyle == "" && len(p.Interests) == 0 &&
		len(p.DietaryRestrictions) == 0 && p.AccommodationType == "" && p.TransportPreference == ""
}

// Activity is a single entry in a day plan.
type Activity struct {
	Name        string          `json:"name"`
	Type        ActivityType    `json:"type"`
	Description string          `json:"description"`
	TimeSlot    string          `json:"time_slot"`
	Duration    int             `json:"duration"` // minutes
	Cost        decimal.Decimal `json:"cost"`
	Rating      *float64        `json:"rating,omitempty"`
	Location    Location        `json:"location"`
	BookingURL  string          `json:"booking_url,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Tips        []string        `json:"tips,omitempty"`
}

// DayPlan is one day of a trip itinerary.
type DayPlan struct {
	Day        int             `json:"day"`
	Date       string          `json:"date,omitempty"` // YYYY-MM-DD
	Notes      string          `json:"notes"`
	Budget     decimal.Decimal `json:"budget"`
	Activities []Activity      `json:"activities"`
}

// Trip is a user's planned journey.
type Trip struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Title       string          `json:"title"`
	Destination string          `json:"destination"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Budget      decimal.Decimal `json:"budget"`
	Travelers   int             `json:"travelers"`
	Status      TripStatus      `json:"status"`
	Preferences Preferences     `json:"preferences"`
	Itinerary   []DayPlan       `json:"itinerary"`
	ShareID     string          `json:"share_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TripInput is the input for creating a trip. Zero values take defaults.
type TripInput struct {
	Title       string           `json:"title"`
	Destination string           `json:"destination"`
	StartDate   *time.Time       `json:"start_date,omitempty"`
	EndDate     *time.Time       `json:"end_date,omitempty"`
	Budget      *decimal.Decimal `json:"budget,omitempty"`
	Travelers   int              `json:"travelers"`
	Status      TripStatus       `json:"status,omitempty"`
	Preferences Preferences      `json:"preferences"`
}

// TripPatch holds a partial trip update. Nil fields are left untouched.
type TripPatch struct {
	Title       *string          `json:"title,omitempty"`
	Destination *string          `json:"destination,omitempty"`
	StartDate   *time.Time       `json:"start_date,omitempty"`
	EndDate     *time.Time       `json:"end_date,omitempty"`
	Budget      *decimal.Decimal `json:"budget,omitempty"`
	Travelers   *int             `json:"travelers,omitempty"`
	Status      *TripStatus      `json:"status,omitempty"`
	Preferences *Preferences     `json:"preferences,omitempty"`
	ShareID     *string          `json:"-"`
}

// Apply merges the patch into t.
func (p TripPatch) Apply(t *Trip) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Destination != nil {
		t.Destination = *p.Destination
	}
	if p.StartDate != nil {
		d := *p.StartDate
		t.StartDate = &d
	}
	if p.EndDate != nil {
		d := *p.EndDate
		t.EndDate = &d
	}
	if p.Budget != nil {
		t.Budget = *p.Budget
	}
	if p.Travelers != nil {
		t.Travelers = *p.Travelers
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Preferences != nil {
		t.Preferences = *p.Preferences
	}
	if p.ShareID != nil {
		t.ShareID = *p.ShareID
	}
}

// DurationDays returns the whole number of days between the trip dates,
// rounded up, and at least 1 so a same-day trip is one day long. ok is false
// when either date is missing or the end is before the start.
func (t Trip) DurationDays() (days int, ok bool) {
	if t.StartDate == nil || t.EndDate == nil {
		return 0, false
	}
	d := t.EndDate.Sub(*t.StartDate)
	if d < 0 {
		return 0, false
	}
	days = int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return max(days, 1), true
}

// TripStats summarizes a user's trips for the dashboard.
type TripStats struct {
	TotalTrips       int             `json:"total_trips"`
	TotalBudget      decimal.Decimal `json:"total_budget"`
	AverageBudget    decimal.Decimal `json:"average_budget"`
	Completed        int             `json:"completed"`
	Upcoming         int             `json:"upcoming"`
	CreatedThisMonth int             `json:"created_this_month"`
}
