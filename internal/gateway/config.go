package gateway

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds provider credentials and endpoints. Base URLs exist so tests
// and self-hosted proxies can point the gateway elsewhere.
type Config struct {
	AmadeusClientID     string `env:"AMADEUS_CLIENT_ID"`
	AmadeusClientSecret string `env:"AMADEUS_CLIENT_SECRET"`
	AmadeusBaseURL      string `env:"TRIPPLANNER_AMADEUS_URL" envDefault:"https://test.api.amadeus.com"`

	OpenWeatherAPIKey  string `env:"OPENWEATHER_API_KEY"`
	OpenWeatherBaseURL string `env:"TRIPPLANNER_OPENWEATHER_URL" envDefault:"https://api.openweathermap.org"`

	FoursquareAPIKey  string `env:"FOURSQUARE_API_KEY"`
	FoursquareBaseURL string `env:"TRIPPLANNER_FOURSQUARE_URL" envDefault:"https://api.foursquare.com"`

	TripAdvisorAPIKey  string `env:"TRIPADVISOR_API_KEY"`
	TripAdvisorBaseURL string `env:"TRIPPLANNER_TRIPADVISOR_URL" envDefault:"https://api.content.tripadvisor.com"`

	CrimeometerAPIKey  string `env:"CRIMEOMETER_API_KEY"`
	CrimeometerBaseURL string `env:"TRIPPLANNER_CRIMEOMETER_URL" envDefault:"https://api.crimeometer.com"`

	GoogleMapsAPIKey  string `env:"GOOGLE_MAPS_API_KEY"`
	GoogleMapsBaseURL string `env:"TRIPPLANNER_GOOGLE_MAPS_URL" envDefault:"https://maps.googleapis.com"`

	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	StripeBaseURL   string `env:"TRIPPLANNER_STRIPE_URL" envDefault:"https://api.stripe.com"`

	// AppURL is the public origin used for checkout and portal return links.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:8080"`

	RedisURL string        `env:"TRIPPLANNER_REDIS_URL"`
	Timeout  time.Duration `env:"TRIPPLANNER_PROVIDER_TIMEOUT" envDefault:"15s"`
}

// ConfigFromEnv parses Config from the process environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse gateway config: %w", err)
	}
	return cfg, nil
}
