// Package testutil builds a complete in-memory tripplanner server for
// integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"tripplanner/internal/auth"
	"tripplanner/internal/billing"
	"tripplanner/internal/gateway"
	tripHTTP "tripplanner/internal/http"
	"tripplanner/internal/observability"
	"tripplanner/internal/planning"
	"tripplanner/internal/realtime"
	"tripplanner/internal/storage"
)

// TokenSecret signs bearer tokens issued by test servers.
const TokenSecret = "test-secret-that-is-at-least-32-bytes-long"

// TestServerConfig holds configuration for creating a test server.
type TestServerConfig struct {
	// EnableRateLimit enables rate limiting middleware.
	EnableRateLimit bool
	// RateLimitConfig configures rate limiting if enabled.
	RateLimitConfig tripHTTP.RateLimitConfig
	// EnableMetrics enables metrics collection.
	EnableMetrics bool
	// Billing overrides the default plan settings.
	Billing *billing.Config
	// Gateway overrides the credential-less provider configuration.
	Gateway *gateway.Config
}

// DefaultTestServerConfig returns a basic test server configuration.
func DefaultTestServerConfig() TestServerConfig {
	return TestServerConfig{}
}

// TestServerComponents holds all the components created for a test server.
type TestServerComponents struct {
	Server       *httptest.Server
	Store        *storage.MemoryStore
	Auth         *auth.Service
	Billing      *billing.Service
	Gateway      *gateway.Gateway
	Orchestrator *planning.Orchestrator
	Hub          *realtime.Hub
	Metrics      *observability.Metrics
	Logger       observability.Logger
	// Cleanup tears down the test server. Call it once.
	Cleanup func()
}

// NewTestServer creates a fully wired server over an in-memory store. The
// provider gateway has no credentials, so every lookup returns its fallback.
func NewTestServer(t *testing.T, cfg TestServerConfig) *TestServerComponents {
	t.Helper()

	logger := observability.Discard()
	var metrics *observability.Metrics
	if cfg.EnableMetrics {
		metrics = observability.NewMetrics(observability.MetricsConfig{
			Namespace: "tripplanner_test",
			Version:   "test",
		})
	}

	mem := storage.NewMemoryStore()
	hub := realtime.NewHub()
	store := realtime.NewNotifyingStore(mem, hub)

	gwCfg := gateway.Config{}
	if cfg.Gateway != nil {
		gwCfg = *cfg.Gateway
	}
	gw := gateway.New(gwCfg, gateway.WithLogger(logger), gateway.WithMetrics(metrics))

	billCfg := billing.DefaultConfig()
	if cfg.Billing != nil {
		billCfg = *cfg.Billing
	}
	bill := billing.NewService(billCfg, store, gw, logger)

	tokens, err := auth.NewTokens([]byte(TokenSecret), auth.DefaultTokenTTL)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	authSvc := auth.NewService(store, auth.NewMemorySessionStore(), tokens, auth.Config{})

	gen := planning.NewGenerator(store, gw, logger, metrics)
	orch := planning.NewOrchestrator(store, gw, gen, logger, metrics)

	httpCfg := tripHTTP.Config{PublicURL: "https://trips.example.com"}
	if cfg.EnableRateLimit {
		httpCfg.RateLimit = cfg.RateLimitConfig
	}
	srv := tripHTTP.NewServer(tripHTTP.Deps{
		Store:        store,
		Auth:         authSvc,
		Orchestrator: orch,
		Travel:       gw,
		Billing:      bill,
		Hub:          hub,
		Logger:       logger,
		Metrics:      metrics,
		ReadyChecks:  map[string]tripHTTP.Pinger{},
	}, httpCfg)

	testServer := httptest.NewServer(srv.Handler())
	cleanup := func() {
		testServer.Close()
		orch.Wait()
		_ = mem.Close()
	}
	return &TestServerComponents{
		Server:       testServer,
		Store:        mem,
		Auth:         authSvc,
		Billing:      bill,
		Gateway:      gw,
		Orchestrator: orch,
		Hub:          hub,
		Metrics:      metrics,
		Logger:       logger,
		Cleanup:      cleanup,
	}
}

// URL returns the full URL for a given path.
func (c *TestServerComponents) URL(path string) string {
	return c.Server.URL + path
}

// Browser is an HTTP client that keeps cookies and echoes the CSRF cookie
// in the X-CSRF-Token header, the way the web client does.
type Browser struct {
	t      *testing.T
	srv    *TestServerComponents
	Client *http.Client
}

// NewBrowser returns a client with an empty cookie jar.
func (c *TestServerComponents) NewBrowser(t *testing.T) *Browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := c.Server.Client()
	client.Jar = jar
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &Browser{t: t, srv: c, Client: client}
}

// Cookie returns the value of the named cookie for the server, or "".
func (b *Browser) Cookie(name string) string {
	u, _ := url.Parse(b.srv.Server.URL)
	for _, c := range b.Client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Do sends a request with a JSON body (nil for none). State-changing
// requests fetch a CSRF cookie first when the jar has none.
func (b *Browser) Do(method, path string, body any) *http.Response {
	b.t.Helper()
	if method != http.MethodGet && b.Cookie("csrf_token") == "" {
		resp := b.Do(http.MethodGet, "/healthz", nil)
		_ = resp.Body.Close()
	}
	var r io.Reader
	if body != nil {
		r = JSONBody(b.t, body)
	}
	req, err := http.NewRequest(method, b.srv.URL(path), r)
	if err != nil {
		b.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", b.Cookie("csrf_token"))
	}
	return DoRequest(b.t, b.Client, req)
}

// SignUp creates an account and signs the browser in.
func (b *Browser) SignUp(email, password string) SignInResult {
	b.t.Helper()
	resp := b.Do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": "Test User",
	})
	AssertStatus(b.t, resp.StatusCode, http.StatusCreated)
	var out SignInResult
	ReadJSONResponse(b.t, resp, &out)
	return out
}

// SignInResult mirrors the sign-in response.
type SignInResult struct {
	Profile struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Plan  string `json:"plan"`
	} `json:"profile"`
	Token string `json:"token"`
}

// AuthenticatedRequest creates an HTTP request with Bearer token authentication.
func AuthenticatedRequest(method, url, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// MustAuthenticatedRequest is AuthenticatedRequest failing the test on error.
func MustAuthenticatedRequest(t *testing.T, method, url, token string, body io.Reader) *http.Request {
	t.Helper()
	req, err := AuthenticatedRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

// DoRequest performs an HTTP request and returns the response.
func DoRequest(t *testing.T, client *http.Client, req *http.Request) *http.Response {
	t.Helper()
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, got, expected int) {
	t.Helper()
	if got != expected {
		t.Fatalf("expected status %d, got %d", expected, got)
	}
}

// AssertContains checks that the response body contains the expected string.
func AssertContains(t *testing.T, body io.Reader, expected string) {
	t.Helper()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !bytes.Contains(data, []byte(expected)) {
		t.Errorf("expected body to contain %q, got: %s", expected, string(data))
	}
}

// AssertHeader checks that the response has the expected header value.
func AssertHeader(t *testing.T, resp *http.Response, key, expected string) {
	t.Helper()
	if got := resp.Header.Get(key); got != expected {
		t.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
}

// JSONBody creates an io.Reader from a JSON-serializable value.
func JSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return bytes.NewReader(data)
}

// ReadJSONResponse reads and unmarshals a JSON response body.
func ReadJSONResponse(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to unmarshal response: %v\nBody: %s", err, string(data))
	}
}
