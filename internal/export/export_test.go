package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tripplanner/internal/domain"
)

type fixedZone string

func (z fixedZone) GetTimezoneName(float64, float64) string { return string(z) }

func sampleTrip() domain.Trip {
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)
	rating := 4.5
	return domain.Trip{
		ID:          "trip-1",
		Title:       "Roman Holiday",
		Destination: "Rome",
		StartDate:   &start,
		EndDate:     &end,
		Budget:      decimal.NewFromInt(400),
		Travelers:   2,
		Itinerary: []domain.DayPlan{
			{
				Day:    1,
				Date:   "2024-03-15",
				Notes:  "Ancient Rome and a caffè stop",
				Budget: decimal.NewFromInt(200),
				Activities: []domain.Activity{
					{
						Name:     "Colosseum",
						Type:     domain.ActivityAttraction,
						TimeSlot: "09:00-12:00",
						Duration: 180,
						Cost:     decimal.RequireFromString("18.50"),
						Rating:   &rating,
						Location: domain.Location{Name: "Colosseo", Address: "Piazza del Colosseo", Lat: 41.8902, Lng: 12.4922},
						Tips:     []string{"Book ahead"},
					},
					{
						Name:     "Lunch",
						Type:     domain.ActivityMeal,
						TimeSlot: "12:30",
						Duration: 90,
						Cost:     decimal.NewFromInt(25),
					},
				},
			},
			{
				Day:    2,
				Budget: decimal.NewFromInt(200),
				Activities: []domain.Activity{
					{Name: "Free day", Type: domain.ActivityRest, Duration: 60, Cost: decimal.Zero},
				},
			},
		},
	}
}

func TestPDF(t *testing.T) {
	for name, opts := range map[string]PDFOptions{
		"plain":      {},
		"with share": {ShareURL: "https://app.example/shared/abc123"},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := PDF(sampleTrip(), opts)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.HasPrefix(out, []byte("%PDF-")) {
				t.Errorf("output does not start with a PDF header: %q", out[:min(len(out), 16)])
			}
		})
	}
}

func TestPDFEmptyItinerary(t *testing.T) {
	trip := sampleTrip()
	trip.Itinerary = nil
	trip.StartDate, trip.EndDate = nil, nil
	out, err := PDF(trip, PDFOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 {
		t.Error("empty output")
	}
}

func TestActivityDetails(t *testing.T) {
	got := activityDetails(sampleTrip().Itinerary[0].Activities[0])
	for _, want := range []string{"attraction, 180 min, $18.50", "Colosseo, Piazza del Colosseo", "Tips: Book ahead"} {
		if !strings.Contains(got, want) {
			t.Errorf("details %q missing %q", got, want)
		}
	}
}

func TestICalWithTimeZone(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out, err := ICal(sampleTrip(), ICalOptions{Zones: fixedZone("Europe/Rome"), Now: now})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:Roman Holiday",
		"UID:trip-1-1-1@tripplanner",
		"SUMMARY:Colosseum",
		"DTSTART;TZID=Europe/Rome:20240315T090000",
		"DTEND;TZID=Europe/Rome:20240315T120000",
		"DTSTART;TZID=Europe/Rome:20240315T123000",
		"DTEND;TZID=Europe/Rome:20240315T140000",
		"DTSTART;VALUE=DATE:20240316",
		"DTEND;VALUE=DATE:20240317",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("calendar missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 3 {
		t.Errorf("events = %d, want 3", got)
	}
}

func TestICalFloatingTimes(t *testing.T) {
	trip := sampleTrip()
	trip.Itinerary[0].Activities[0].Location = domain.Location{Name: "Colosseo"}
	out, err := ICal(trip, ICalOptions{Zones: fixedZone("Europe/Rome")})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "TZID=") {
		t.Error("times should float without coordinates")
	}
	if !strings.Contains(out, "DTSTART:20240315T090000") {
		t.Errorf("missing floating start:\n%s", out)
	}
}

func TestICalUndated(t *testing.T) {
	trip := sampleTrip()
	trip.StartDate = nil
	trip.Itinerary[0].Date = ""
	if _, err := ICal(trip, ICalOptions{}); !errors.Is(err, ErrUndated) {
		t.Errorf("err = %v, want ErrUndated", err)
	}
}

func TestSlotTimes(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		slot       string
		minutes    int
		start, end string
		ok         bool
	}{
		{"09:00-12:00", 30, "09:00", "12:00", true},
		{"14:15", 45, "14:15", "15:00", true},
		{"18:00-17:00", 0, "18:00", "19:00", true},
		{"morning", 60, "", "", false},
		{"", 60, "", "", false},
	}
	for _, tt := range tests {
		start, end, ok := slotTimes(day, tt.slot, tt.minutes)
		if ok != tt.ok {
			t.Errorf("slotTimes(%q) ok = %v, want %v", tt.slot, ok, tt.ok)
			continue
		}
		if ok && (start.Format("15:04") != tt.start || end.Format("15:04") != tt.end) {
			t.Errorf("slotTimes(%q) = %s-%s, want %s-%s", tt.slot, start.Format("15:04"), end.Format("15:04"), tt.start, tt.end)
		}
	}
}

func TestDefaultZoneFinder(t *testing.T) {
	if testing.Short() {
		t.Skip("loads time zone boundaries")
	}
	f, err := DefaultZoneFinder()
	if err != nil {
		t.Fatal(err)
	}
	if got := f.GetTimezoneName(2.3522, 48.8566); got != "Europe/Paris" {
		t.Errorf("Paris zone = %q", got)
	}
}
