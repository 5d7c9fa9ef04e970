package main

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if !cfg.RateLimit.Enabled() {
		t.Error("expected rate limiting enabled by default")
	}
	if cfg.SignInAttempts != 5 {
		t.Errorf("SignInAttempts = %d, want 5", cfg.SignInAttempts)
	}
	if cfg.SessionTTL != 7*24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "4")
	t.Setenv("TRIPPLANNER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TRIPPLANNER_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")
	t.Setenv("TRIPPLANNER_TOKEN_SECRET", strings.Repeat("s", 40))

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 || cfg.RateLimit.Burst != 4 {
		t.Errorf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if len(cfg.RateLimit.TrustedProxies) != 2 {
		t.Errorf("TrustedProxies = %v", cfg.RateLimit.TrustedProxies)
	}
	if cfg.StateSecret != cfg.TokenSecret {
		t.Error("expected the state secret to default to the token secret")
	}
	hc := cfg.httpConfig()
	if hc.SignInAttemptsPerMinute != 5 || len(hc.AllowedOrigins) != 2 {
		t.Errorf("unexpected http config %+v", hc)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad proxy", map[string]string{"TRIPPLANNER_TRUSTED_PROXIES": "not-an-ip"}},
		{"short token secret", map[string]string{"TRIPPLANNER_TOKEN_SECRET": "short"}},
		{"oidc without secret", map[string]string{"OIDC_ISSUER_URL": "https://idp.example", "OIDC_CLIENT_ID": "client"}},
		{"bad duration", map[string]string{"TRIPPLANNER_TOKEN_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := loadConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
