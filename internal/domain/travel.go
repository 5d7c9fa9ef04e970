package domain

// Flight is a flight offer summary.
type Flight struct {
	ID         string         `json:"id"`
	Price      string         `json:"price"`
	Currency   string         `json:"currency"`
	Airline    string         `json:"airline"`
	Departure  FlightEndpoint `json:"departure"`
	Arrival    FlightEndpoint `json:"arrival"`
	Duration   string         `json:"duration"` // ISO-8601, e.g. PT6H30M
	BookingURL string         `json:"booking_url"`
}

// FlightEndpoint is one end of a flight segment.
type FlightEndpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

// Hotel is a hotel offer summary.
type Hotel struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Rating     float64  `json:"rating"`
	Price      string   `json:"price"`
	Currency   string   `json:"currency"`
	Address    string   `json:"address"`
	Amenities  []string `json:"amenities"`
	BookingURL string   `json:"booking_url"`
}

// Restaurant is a place to eat.
type Restaurant struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Rating   float64  `json:"rating"`
	Price    int      `json:"price"` // 1-4
	Address  string   `json:"address"`
	Photos   []string `json:"photos,omitempty"`
}

// Attraction is a point of interest.
type Attraction struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rating      float64  `json:"rating"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	Photos      []string `json:"photos,omitempty"`
}

// WeatherNow is the current conditions at a location.
type WeatherNow struct {
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// WeatherDay is a forecast entry.
type WeatherDay struct {
	Date          string  `json:"date"`
	Temperature   float64 `json:"temperature"`
	Condition     string  `json:"condition"`
	Precipitation float64 `json:"precipitation"`
}

// Weather is current conditions plus a short forecast.
type Weather struct {
	Current  WeatherNow   `json:"current"`
	Forecast []WeatherDay `json:"forecast"`
}

// SafetyAlert is a reported incident or advisory.
type SafetyAlert struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// SafetyReport summarizes safety information for a destination.
type SafetyReport struct {
	SafetyLevel     int           `json:"safety_level"` // 1-10
	Alerts          []SafetyAlert `json:"alerts"`
	Recommendations []string      `json:"recommendations"`
}

// Place is a search hit from the map provider.
type Place struct {
	Location
	Rating float64  `json:"rating,omitempty"`
	Types  []string `json:"types,omitempty"`
}

// Route is a travel route between waypoints.
type Route struct {
	Summary         string   `json:"summary"`
	DistanceMeters  int      `json:"distance_meters"`
	DurationSeconds int      `json:"duration_seconds"`
	Polyline        string   `json:"polyline,omitempty"`
	Steps           []string `json:"steps,omitempty"`
}
