package planning

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tripplanner/internal/domain"
)

// digestSize is the number of results listed in a summary message.
const digestSize = 3

var titleCase = cases.Title(language.English)

func top[T any](items []T) []T {
	if len(items) > digestSize {
		return items[:digestSize]
	}
	return items
}

func digest(header string, lines []string) string {
	return header + "\n" + strings.Join(lines, "\n")
}

func flightDigest(dest string, flights []domain.Flight) string {
	lines := lo.Map(top(flights), func(f domain.Flight, i int) string {
		return fmt.Sprintf("%d. %s %s -> %s, %s %s", i+1, f.Airline, f.Departure.IATACode, f.Arrival.IATACode, f.Price, f.Currency)
	})
	return digest(fmt.Sprintf("Flights to %s:", titleCase.String(dest)), lines)
}

func hotelDigest(dest string, hotels []domain.Hotel) string {
	lines := lo.Map(top(hotels), func(h domain.Hotel, i int) string {
		return fmt.Sprintf("%d. %s (%.1f stars), %s %s per night", i+1, h.Name, h.Rating, h.Price, h.Currency)
	})
	return digest(fmt.Sprintf("Hotels in %s:", titleCase.String(dest)), lines)
}

func restaurantDigest(dest string, restaurants []domain.Restaurant) string {
	lines := lo.Map(top(restaurants), func(r domain.Restaurant, i int) string {
		return fmt.Sprintf("%d. %s (%s), rated %.1f, %s", i+1, r.Name, r.Category, r.Rating, strings.Repeat("$", max(r.Price, 1)))
	})
	return digest(fmt.Sprintf("Restaurants in %s:", titleCase.String(dest)), lines)
}

// weatherDigest puts the current conditions in the header so the body keeps
// to digestSize forecast lines.
func weatherDigest(dest string, w domain.Weather) string {
	header := fmt.Sprintf("Weather in %s (now %.0f°C, %s, humidity %d%%):",
		titleCase.String(dest), w.Current.Temperature, w.Current.Condition, w.Current.Humidity)
	lines := lo.Map(top(w.Forecast), func(d domain.WeatherDay, _ int) string {
		return fmt.Sprintf("%s: %.0f°C, %s", d.Date, d.Temperature, d.Condition)
	})
	return digest(header, lines)
}
