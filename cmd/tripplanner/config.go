package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"tripplanner/internal/auth"
	"tripplanner/internal/auth/oidc"
	tripHTTP "tripplanner/internal/http"
)

// config is the process configuration. Provider credentials and plan
// settings live in gateway.Config and billing.Config.
type config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	Port      string `env:"PORT"` // Heroku-style; overrides ADDR
	PublicURL string `env:"APP_URL" envDefault:"http://localhost:8080"`

	AllowedOrigins []string `env:"TRIPPLANNER_CORS_ORIGINS" envSeparator:","`
	TrustedProxies []string `env:"TRIPPLANNER_TRUSTED_PROXIES" envSeparator:","`
	RateLimit      tripHTTP.RateLimitConfig
	SignInAttempts int  `env:"TRIPPLANNER_SIGNIN_ATTEMPTS_PER_MINUTE" envDefault:"5"`
	SecureCookies  bool `env:"TRIPPLANNER_SECURE_COOKIES"`

	TokenSecret       string        `env:"TRIPPLANNER_TOKEN_SECRET"`
	TokenTTL          time.Duration `env:"TRIPPLANNER_TOKEN_TTL" envDefault:"24h"`
	SessionTTL        time.Duration `env:"TRIPPLANNER_SESSION_TTL" envDefault:"168h"`
	MinPasswordLength int           `env:"TRIPPLANNER_MIN_PASSWORD_LENGTH" envDefault:"8"`

	OIDC        oidc.ProviderConfig `envPrefix:"OIDC_"`
	StateSecret string              `env:"TRIPPLANNER_STATE_SECRET"`

	GenerationTimeout time.Duration `env:"TRIPPLANNER_GENERATION_TIMEOUT" envDefault:"2m"`

	SQLiteDSN   string `env:"SQLITE_DSN" envDefault:"file:tripplanner.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	Version           string `env:"APP_VERSION" envDefault:"dev"`
}

func loadConfig() (config, error) {
	cfg := config{RateLimit: tripHTTP.DefaultRateLimitConfig()}
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Port != "" {
		cfg.Addr = ":" + cfg.Port
	}
	proxies, err := tripHTTP.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return config{}, fmt.Errorf("TRIPPLANNER_TRUSTED_PROXIES: %w", err)
	}
	cfg.RateLimit.TrustedProxies = proxies
	if cfg.TokenSecret != "" && len(cfg.TokenSecret) < auth.MinTokenSecretLength {
		return config{}, fmt.Errorf("TRIPPLANNER_TOKEN_SECRET must be at least %d bytes", auth.MinTokenSecretLength)
	}
	if cfg.StateSecret == "" {
		cfg.StateSecret = cfg.TokenSecret
	}
	if cfg.OIDC.Enabled() && cfg.StateSecret == "" {
		return config{}, fmt.Errorf("OIDC sign-in needs TRIPPLANNER_STATE_SECRET or TRIPPLANNER_TOKEN_SECRET")
	}
	return cfg, nil
}

func (c config) httpConfig() tripHTTP.Config {
	return tripHTTP.Config{
		PublicURL:               c.PublicURL,
		AllowedOrigins:          c.AllowedOrigins,
		RateLimit:               c.RateLimit,
		SignInAttemptsPerMinute: c.SignInAttempts,
		SecureCookies:           c.SecureCookies,
	}
}
