package export

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/ringsaturn/tzf"
	"github.com/samber/lo"

	"tripplanner/internal/domain"
)

// ErrUndated is returned when an itinerary cannot be placed on a calendar.
var ErrUndated = errors.New("itinerary has no dates")

// ZoneFinder maps a coordinate to an IANA time zone name.
type ZoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

var (
	defaultFinderOnce sync.Once
	defaultFinder     ZoneFinder
	defaultFinderErr  error
)

// DefaultZoneFinder returns the process-wide time zone finder, loading its
// boundary data on first use.
func DefaultZoneFinder() (ZoneFinder, error) {
	defaultFinderOnce.Do(func() {
		f, err := tzf.NewDefaultFinder()
		if err != nil {
			defaultFinderErr = fmt.Errorf("load time zone data: %w", err)
			return
		}
		defaultFinder = f
	})
	return defaultFinder, defaultFinderErr
}

const (
	icalDate     = "20060102"
	icalDateTime = "20060102T150405"
	dayLayout    = "2006-01-02"
)

// ICalOptions controls the calendar rendering.
type ICalOptions struct {
	// Zones resolves the destination's time zone from activity
	// coordinates. Without it, or without coordinates, times are floating.
	Zones ZoneFinder
	// Now stamps the events.
	Now time.Time
}

// TimeZone returns the zone of the first activity with coordinates.
func TimeZone(trip domain.Trip, zones ZoneFinder) string {
	if zones == nil {
		return ""
	}
	for _, day := range trip.Itinerary {
		for _, a := range day.Activities {
			if a.Location.HasCoordinates() {
				return zones.GetTimezoneName(a.Location.Lng, a.Location.Lat)
			}
		}
	}
	return ""
}

// ICal renders the itinerary as an iCalendar feed, one event per activity.
// Activities without a parsable time slot become all-day events.
func ICal(trip domain.Trip, opts ICalOptions) (string, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	tz := TimeZone(trip, opts.Zones)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//tripplanner//itinerary//EN")
	cal.SetXWRCalName(trip.Title)
	if tz != "" {
		cal.SetXWRTimezone(tz)
	}

	for i, day := range trip.Itinerary {
		date, err := dayDate(trip, i, day.Date)
		if err != nil {
			return "", err
		}
		for j, a := range day.Activities {
			ev := cal.AddEvent(fmt.Sprintf("%s-%d-%d@tripplanner", trip.ID, day.Day, j+1))
			ev.SetDtStampTime(opts.Now)
			ev.SetSummary(a.Name)
			if loc := locationText(a.Location); loc != "" {
				ev.SetLocation(loc)
			}
			if a.Description != "" {
				ev.SetDescription(a.Description)
			}
			if a.BookingURL != "" {
				ev.SetURL(a.BookingURL)
			}

			start, end, ok := slotTimes(date, a.TimeSlot, a.Duration)
			if !ok {
				value := &ics.KeyValues{Key: string(ics.ParameterValue), Value: []string{"DATE"}}
				ev.SetProperty(ics.ComponentPropertyDtStart, date.Format(icalDate), value)
				ev.SetProperty(ics.ComponentPropertyDtEnd, date.AddDate(0, 0, 1).Format(icalDate), value)
				continue
			}
			if tz != "" {
				zone := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{tz}}
				ev.SetProperty(ics.ComponentPropertyDtStart, start.Format(icalDateTime), zone)
				ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format(icalDateTime), zone)
			} else {
				ev.SetProperty(ics.ComponentPropertyDtStart, start.Format(icalDateTime))
				ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format(icalDateTime))
			}
		}
	}
	return cal.Serialize(), nil
}

func locationText(l domain.Location) string {
	parts := lo.Compact([]string{strings.TrimSpace(l.Name), strings.TrimSpace(l.Address)})
	return strings.Join(parts, ", ")
}

// dayDate is the calendar date of the i-th day.
func dayDate(trip domain.Trip, i int, stored string) (time.Time, error) {
	if stored != "" {
		d, err := time.Parse(dayLayout, stored)
		if err == nil {
			return d, nil
		}
	}
	if trip.StartDate == nil {
		return time.Time{}, ErrUndated
	}
	s := trip.StartDate.UTC()
	return time.Date(s.Year(), s.Month(), s.Day()+i, 0, 0, 0, 0, time.UTC), nil
}

// slotTimes reads "HH:MM-HH:MM" (or a lone "HH:MM" plus the duration) as
// wall-clock times on date.
func slotTimes(date time.Time, slot string, minutes int) (start, end time.Time, ok bool) {
	from, to, hasEnd := strings.Cut(strings.TrimSpace(slot), "-")
	clock := func(s string) (time.Time, bool) {
		t, err := time.Parse("15:04", strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, false
		}
		return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), true
	}
	start, ok = clock(from)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if hasEnd {
		if end, ok = clock(to); ok && end.After(start) {
			return start, end, true
		}
	}
	if minutes <= 0 {
		minutes = 60
	}
	return start, start.Add(time.Duration(minutes) * time.Minute), true
}
