package gateway

import (
	"hash/fnv"

	"tripplanner/internal/domain"
)

// Fallback payloads. They depend only on their arguments.

func fallbackFlights(origin, destination string) []domain.Flight {
	return []domain.Flight{{
		ID:         "1",
		Price:      "450.00",
		Currency:   "USD",
		Airline:    "AA",
		Departure:  domain.FlightEndpoint{IATACode: origin, At: "2024-03-15T08:00:00"},
		Arrival:    domain.FlightEndpoint{IATACode: destination, At: "2024-03-15T14:30:00"},
		Duration:   "PT6H30M",
		BookingURL: "https://www.expedia.com",
	}}
}

func fallbackHotels(city string) []domain.Hotel {
	return []domain.Hotel{{
		ID:         "1",
		Name:       "Grand Plaza Hotel",
		Rating:     4,
		Price:      "120.00",
		Currency:   "USD",
		Address:    "Downtown " + city,
		Amenities:  []string{"WiFi", "Breakfast", "Pool", "Gym"},
		BookingURL: "https://www.booking.com",
	}}
}

func fallbackRestaurants(location string) []domain.Restaurant {
	return []domain.Restaurant{{
		ID:       "1",
		Name:     "Local Bistro",
		Category: "European",
		Rating:   4.5,
		Price:    3,
		Address:  "Main Street, " + location,
		Photos:   []string{"https://images.pexels.com/photos/262978/pexels-photo-262978.jpeg"},
	}}
}

func fallbackAttractions(location string) []domain.Attraction {
	return []domain.Attraction{{
		ID:          "1",
		Name:        "Historic City Center",
		Rating:      4.8,
		Description: "Beautiful historic architecture and cultural sites",
		Address:     "City Center, " + location,
		Photos:      []string{"https://images.pexels.com/photos/208701/pexels-photo-208701.jpeg"},
	}}
}

func fallbackWeather() domain.Weather {
	return domain.Weather{
		Current: domain.WeatherNow{Temperature: 22, Condition: "partly cloudy", Humidity: 65, WindSpeed: 10},
		Forecast: []domain.WeatherDay{
			{Date: "2024-03-15", Temperature: 24, Condition: "sunny", Precipitation: 0},
			{Date: "2024-03-16", Temperature: 21, Condition: "cloudy", Precipitation: 20},
		},
	}
}

func fallbackSafety() domain.SafetyReport {
	return domain.SafetyReport{
		SafetyLevel: 8,
		Alerts: []domain.SafetyAlert{{
			Type:        "pickpocketing",
			Severity:    "low",
			Location:    "Tourist areas",
			Description: "Be aware of pickpockets in crowded areas",
			Timestamp:   "2024-03-15T00:00:00Z",
		}},
		Recommendations: []string{"Keep valuables secure", "Stay in well-lit areas", "Use official transportation"},
	}
}

// fallbackGeocode echoes the query without coordinates.
func fallbackGeocode(query string) domain.Location {
	return domain.Location{Name: query, Address: query}
}

func fallbackPlaces() []domain.Place { return []domain.Place{} }

func fallbackRoute() domain.Route { return domain.Route{Summary: "Route unavailable"} }

// cannedReply picks one of three replies by a hash of the message, so the
// same message always gets the same reply.
func cannedReply(message string) string {
	replies := [...]string{
		`I'd be happy to help you plan your trip! Based on your message about "` + message + `", I can provide some great recommendations. What specific aspects of your travel would you like to focus on - accommodation, activities, dining, or transportation?`,
		"That sounds like an exciting destination! For the best travel experience, I'd recommend considering your budget, travel dates, and preferred activities. Would you like me to help you create a detailed itinerary?",
		"Great question! I can help you with detailed travel planning including flights, hotels, local attractions, and safety tips. What's your approximate budget and how many days are you planning to stay?",
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(message))
	return replies[h.Sum32()%uint32(len(replies))]
}
