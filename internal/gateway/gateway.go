// Package gateway wraps every external provider the planner talks to.
//
// Data kinds (flights, weather, ...) never fail: when a provider is not
// configured, unreachable or answers with something unexpected, the gateway
// returns a fixed fallback payload and flags the result. Action kinds
// (checkout, billing-portal) have no safe fallback and return ErrActionFailed.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tripplanner/internal/observability"
	"tripplanner/internal/planning/llm"
)

// Kind names a provider operation.
type Kind string

const (
	KindFlights             Kind = "flights"
	KindHotels              Kind = "hotels"
	KindWeather             Kind = "weather"
	KindSafety              Kind = "safety"
	KindRestaurants         Kind = "restaurants"
	KindAttractions         Kind = "attractions"
	KindGeocode             Kind = "geocode"
	KindPlaces              Kind = "places"
	KindRouting             Kind = "routing"
	KindGenerativeChat      Kind = "generative-chat"
	KindGenerativeItinerary Kind = "generative-itinerary"
	KindCheckout            Kind = "checkout"
	KindBillingPortal       Kind = "billing-portal"
)

// DataKinds lists the kinds that degrade to a fallback payload.
var DataKinds = []Kind{
	KindFlights, KindHotels, KindWeather, KindSafety, KindRestaurants, KindAttractions,
	KindGeocode, KindPlaces, KindRouting, KindGenerativeChat, KindGenerativeItinerary,
}

// IsAction reports whether k is a payment action.
func (k Kind) IsAction() bool { return k == KindCheckout || k == KindBillingPortal }

// Result is a provider answer. When Fallback is set, Data is the fixed
// fallback payload for Kind and Reason names the failure class.
type Result[T any] struct {
	Kind     Kind   `json:"kind"`
	Data     T      `json:"data"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

const (
	weatherTTL = time.Hour
	safetyTTL  = 24 * time.Hour
	geocodeTTL = 24 * time.Hour
)

// Gateway talks to the external providers.
type Gateway struct {
	cfg     Config
	client  *http.Client
	cache   Cache
	llm     llm.Provider
	logger  observability.Logger
	metrics *observability.Metrics
	amadeus *tokenCache
	now     func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) Option { return func(g *Gateway) { g.client = c } }

// WithCache sets the result cache. Nil disables caching.
func WithCache(c Cache) Option { return func(g *Gateway) { g.cache = c } }

// WithLLM sets the generative text provider.
func WithLLM(p llm.Provider) Option { return func(g *Gateway) { g.llm = p } }

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option { return func(g *Gateway) { g.logger = l } }

// WithMetrics sets the metrics collector.
func WithMetrics(m *observability.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

// New creates a Gateway. Without WithCache it uses a MemoryCache.
func New(cfg Config, opts ...Option) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	g := &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  NewMemoryCache(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = observability.NewLogger(observability.DefaultConfig())
	}
	g.logger = g.logger.WithComponent("gateway")
	g.amadeus = newTokenCache(cfg)
	return g
}

// fetch runs call, caching successes under key for ttl. On failure it
// returns fallback() flagged with the failure reason. Fallbacks are never
// cached.
func fetch[T any](ctx context.Context, g *Gateway, kind Kind, key string, ttl time.Duration, call func(context.Context) (T, error), fallback func() T) Result[T] {
	if key != "" && g.cache != nil {
		if b, ok := g.cache.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(b, &v); err == nil {
				g.metrics.RecordProviderCall(string(kind), "cache")
				return Result[T]{Kind: kind, Data: v}
			}
		}
	}

	v, err := call(ctx)
	if err != nil {
		reason := reasonOf(err)
		g.metrics.RecordProviderCall(string(kind), "fallback")
		g.logger.WarnContext(ctx, "provider fallback", "kind", kind, "reason", reason, "error", err)
		return Result[T]{Kind: kind, Data: fallback(), Fallback: true, Reason: reason}
	}

	if key != "" && ttl > 0 && g.cache != nil {
		if b, err := json.Marshal(v); err == nil {
			g.cache.Set(ctx, key, b, ttl)
		}
	}
	g.metrics.RecordProviderCall(string(kind), "ok")
	return Result[T]{Kind: kind, Data: v}
}

// getJSON issues a GET and decodes a 2xx JSON body into out.
func (g *Gateway) getJSON(ctx context.Context, provider, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	return g.do(req, provider, out)
}

func (g *Gateway) do(req *http.Request, provider string, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", provider, ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{Provider: provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return malformed(provider, err)
	}
	return nil
}

// flexFloat accepts a JSON number or a numeric string. Several providers
// send ratings as "4".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	var v float64
	if _, err := fmt.Sscan(s, &v); err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexFloat(v)
	return nil
}
