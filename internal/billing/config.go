package billing

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds plan and webhook settings.
type Config struct {
	// ProPriceID is the payment provider price behind the pro plan.
	ProPriceID string `env:"STRIPE_PRO_PRICE_ID" envDefault:"price_1234567890"`
	// WebhookSecret signs incoming webhook payloads. Webhooks are rejected
	// while it is empty.
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	// WebhookTolerance is the accepted age of a webhook signature.
	WebhookTolerance time.Duration `env:"TRIPPLANNER_WEBHOOK_TOLERANCE" envDefault:"5m"`
	// FreeMonthlyTrips is the number of trips a free account may create per
	// calendar month.
	FreeMonthlyTrips int `env:"TRIPPLANNER_FREE_MONTHLY_TRIPS" envDefault:"3"`
}

// DefaultConfig returns the built-in plan settings.
func DefaultConfig() Config {
	return Config{
		ProPriceID:       "price_1234567890",
		WebhookTolerance: 5 * time.Minute,
		FreeMonthlyTrips: 3,
	}
}

// ConfigFromEnv parses Config from the process environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse billing config: %w", err)
	}
	if cfg.FreeMonthlyTrips < 0 {
		return Config{}, fmt.Errorf("TRIPPLANNER_FREE_MONTHLY_TRIPS must not be negative")
	}
	return cfg, nil
}
