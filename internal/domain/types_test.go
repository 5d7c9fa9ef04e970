package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIsValidTripStatus(t *testing.T) {
	tests := []struct {
		status TripStatus
		valid  bool
	}{
		{TripStatusPlanning, true},
		{TripStatusCompleted, true},
		{TripStatusCancelled, true},
		{"invalid", false},
		{"", false},
		{"PLANNING", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsValidTripStatus(tt.status); got != tt.valid {
				t.Errorf("IsValidTripStatus(%q) = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestIsValidActivityType(t *testing.T) {
	tests := []struct {
		typ   ActivityType
		valid bool
	}{
		{ActivityAttraction, true},
		{ActivityExperience, true},
		{ActivityTour, true},
		{ActivityRest, true},
		{ActivityMeal, true},
		{ActivityTransport, true},
		{"museum", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := IsValidActivityType(tt.typ); got != tt.valid {
				t.Errorf("IsValidActivityType(%q) = %v, want %v", tt.typ, got, tt.valid)
			}
		})
	}
}

func TestTripDurationDays(t *testing.T) {
	day := func(d int) *time.Time {
		v := time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	halfPast := time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		start    *time.Time
		end      *time.Time
		wantDays int
		wantOK   bool
	}{
		{"no dates", nil, nil, 0, false},
		{"start only", day(15), nil, 0, false},
		{"three days", day(15), day(18), 3, true},
		{"partial day rounds up", day(15), &halfPast, 3, true},
		{"same day", day(15), day(15), 1, true},
		{"reversed", day(18), day(15), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := Trip{StartDate: tt.start, EndDate: tt.end}
			days, ok := trip.DurationDays()
			if days != tt.wantDays || ok != tt.wantOK {
				t.Errorf("DurationDays() = (%d, %v), want (%d, %v)", days, ok, tt.wantDays, tt.wantOK)
			}
		})
	}
}

func TestTripPatchApply(t *testing.T) {
	trip := Trip{
		Title:       "Old",
		Destination: "Rome",
		Budget:      decimal.NewFromInt(100),
		Travelers:   1,
		Status:      TripStatusPlanning,
	}

	title := "Roman Holiday"
	travelers := 2
	TripPatch{Title: &title, Travelers: &travelers}.Apply(&trip)

	if trip.Title != "Roman Holiday" {
		t.Errorf("Title = %q, want %q", trip.Title, "Roman Holiday")
	}
	if trip.Travelers != 2 {
		t.Errorf("Travelers = %d, want 2", trip.Travelers)
	}
	if trip.Destination != "Rome" {
		t.Errorf("Destination changed to %q", trip.Destination)
	}
	if !trip.Budget.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Budget changed to %s", trip.Budget)
	}
}

func TestSessionTitle(t *testing.T) {
	if got := SessionTitle("Hi"); got != "Hi..." {
		t.Errorf("SessionTitle short = %q", got)
	}
	long := "Plan a relaxing two week trip through the south of Italy please"
	got := SessionTitle(long)
	if want := long[:50] + "..."; got != want {
		t.Errorf("SessionTitle long = %q, want %q", got, want)
	}
}
