package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tripplanner/internal/observability"
	"tripplanner/internal/planning/llm"
)

func newTestGateway(cfg Config, opts ...Option) *Gateway {
	opts = append([]Option{WithLogger(observability.Discard())}, opts...)
	return New(cfg, opts...)
}

// serverConfig points every provider at srv with dummy credentials.
func serverConfig(srv *httptest.Server) Config {
	return Config{
		AmadeusClientID:     "client",
		AmadeusClientSecret: "secret",
		AmadeusBaseURL:      srv.URL,
		OpenWeatherAPIKey:   "ow-key",
		OpenWeatherBaseURL:  srv.URL,
		FoursquareAPIKey:    "fsq-key",
		FoursquareBaseURL:   srv.URL,
		TripAdvisorAPIKey:   "ta-key",
		TripAdvisorBaseURL:  srv.URL,
		CrimeometerAPIKey:   "cm-key",
		CrimeometerBaseURL:  srv.URL,
		GoogleMapsAPIKey:    "g-key",
		GoogleMapsBaseURL:   srv.URL,
		StripeSecretKey:     "sk_test",
		StripeBaseURL:       srv.URL,
		AppURL:              "https://app.example",
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestDataKindsFallBackWithoutCredentials(t *testing.T) {
	g := newTestGateway(Config{})
	params := map[Kind]map[string]string{
		KindFlights:             {"origin": "NYC", "destination": "ROM", "departure_date": "2024-03-15"},
		KindHotels:              {"city_code": "ROM"},
		KindWeather:             {"location": "Rome"},
		KindSafety:              {"location": "Rome"},
		KindRestaurants:         {"location": "Rome"},
		KindAttractions:         {"location": "Rome"},
		KindGeocode:             {"address": "Rome"},
		KindPlaces:              {"query": "museum", "lat": "41.9", "lng": "12.5"},
		KindRouting:             {"waypoints": "41.9,12.5|41.89,12.49"},
		KindGenerativeChat:      {"message": "Where should I eat?"},
		KindGenerativeItinerary: {"destination": "Rome", "duration": "3"},
	}
	for _, kind := range DataKinds {
		t.Run(string(kind), func(t *testing.T) {
			first, err := g.Call(context.Background(), kind, params[kind])
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if !first.Fallback || first.Reason != "credentials_missing" {
				t.Fatalf("fallback=%v reason=%q, want credentials_missing fallback", first.Fallback, first.Reason)
			}
			second, _ := g.Call(context.Background(), kind, params[kind])
			if !reflect.DeepEqual(first, second) {
				t.Errorf("fallback not deterministic:\n%#v\n%#v", first, second)
			}
		})
	}
}

func TestSearchFlightsFallbackFields(t *testing.T) {
	g := newTestGateway(Config{})
	res := g.SearchFlights(context.Background(), FlightQuery{Origin: "NYC", Destination: "ROM", DepartureDate: "2024-03-15"})
	if !res.Fallback || len(res.Data) == 0 {
		t.Fatalf("expected non-empty fallback list, got %+v", res)
	}
	f := res.Data[0]
	if f.Price == "" || f.Currency == "" || f.Airline == "" {
		t.Errorf("price/currency/airline must be populated: %+v", f)
	}
	if f.Departure.IATACode != "NYC" || f.Departure.At == "" || f.Arrival.IATACode != "ROM" || f.Arrival.At == "" {
		t.Errorf("departure/arrival must be populated: %+v", f)
	}
}

func TestAmadeusTokenCachedAndDroppedOn401(t *testing.T) {
	var tokens, searches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("client_id") != "client" || r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad token request", http.StatusBadRequest)
			return
		}
		n := tokens.Add(1)
		writeJSON(w, map[string]any{"access_token": fmt.Sprintf("tok%d", n), "token_type": "Bearer", "expires_in": 1799})
	})
	mux.HandleFunc("GET /v2/shopping/flight-offers", func(w http.ResponseWriter, r *http.Request) {
		n := searches.Add(1)
		if n == 3 {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("originLocationCode") != "JFK" || r.URL.Query().Get("adults") != "1" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok") {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"7","price":{"total":"321.50","currency":"EUR"},
			"itineraries":[{"duration":"PT8H","segments":[{"carrierCode":"AZ",
			"departure":{"iataCode":"JFK","at":"2024-03-15T18:00:00"},
			"arrival":{"iataCode":"FCO","at":"2024-03-16T08:00:00"}}]}]}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(serverConfig(srv))
	q := FlightQuery{Origin: "JFK", Destination: "FCO", DepartureDate: "2024-03-15"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := g.SearchFlights(ctx, q)
		if res.Fallback {
			t.Fatalf("call %d fell back: %s", i, res.Reason)
		}
		if len(res.Data) != 1 || res.Data[0].Airline != "AZ" || res.Data[0].Price != "321.50" || res.Data[0].Arrival.IATACode != "FCO" {
			t.Fatalf("unexpected flights: %+v", res.Data)
		}
		if res.Data[0].BookingURL != "https://www.amadeus.com/booking/7" {
			t.Errorf("booking url = %q", res.Data[0].BookingURL)
		}
	}
	if got := tokens.Load(); got != 1 {
		t.Fatalf("token fetched %d times, want 1", got)
	}

	if res := g.SearchFlights(ctx, q); !res.Fallback || res.Reason != "upstream_unavailable" {
		t.Fatalf("401 should fall back, got %+v", res)
	}
	if res := g.SearchFlights(ctx, q); res.Fallback {
		t.Fatalf("call after 401 fell back: %s", res.Reason)
	}
	if got := tokens.Load(); got != 2 {
		t.Errorf("token fetched %d times after 401, want 2", got)
	}
}

func TestSearchHotelsMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": "t", "token_type": "Bearer", "expires_in": 1799})
	})
	mux.HandleFunc("GET /v2/shopping/hotel-offers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"hotel":{"hotelId":"H1","name":"Hotel Roma","rating":"5","address":{"lines":["Via Roma 1"],"cityName":"ROME"}},
			 "offers":[{"price":{"total":"210.00","currency":"EUR"}}]},
			{"hotel":{"hotelId":"H2","name":"Budget Inn","address":{"cityName":"ROME"}},"offers":[]}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := newTestGateway(serverConfig(srv)).SearchHotels(context.Background(), HotelQuery{CityCode: "ROM"})
	if res.Fallback || len(res.Data) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	h1, h2 := res.Data[0], res.Data[1]
	if h1.Rating != 5 || h1.Price != "210.00" || h1.Currency != "EUR" || h1.Address != "Via Roma 1, ROME" {
		t.Errorf("h1 = %+v", h1)
	}
	if h2.Rating != 4 || h2.Price != "100.00" || h2.Currency != "USD" || h2.BookingURL != "https://www.booking.com/hotel/H2" {
		t.Errorf("h2 defaults not applied: %+v", h2)
	}
}

func weatherBody(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"dt_txt":"2024-03-15 %02d:00:00","main":{"temp":%d.5,"humidity":70},
			"weather":[{"description":"light rain"}],"wind":{"speed":3.2},"rain":{"3h":%d.25}}`, i*3, 18+i, i)
	}
	return `{"list":[` + strings.Join(items, ",") + `]}`
}

func TestWeatherMappingAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/data/2.5/forecast" || r.URL.Query().Get("units") != "metric" || r.URL.Query().Get("appid") != "ow-key" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(weatherBody(8)))
	}))
	defer srv.Close()

	m := observability.NewMetrics(observability.DefaultMetricsConfig())
	g := newTestGateway(serverConfig(srv), WithMetrics(m))
	ctx := context.Background()

	res := g.Weather(ctx, "Rome")
	if res.Fallback {
		t.Fatalf("unexpected fallback: %s", res.Reason)
	}
	w := res.Data
	if w.Current.Temperature != 18.5 || w.Current.Condition != "light rain" || w.Current.Humidity != 70 || w.Current.WindSpeed != 3.2 {
		t.Errorf("current = %+v", w.Current)
	}
	if len(w.Forecast) != 5 {
		t.Fatalf("forecast has %d entries, want 5", len(w.Forecast))
	}
	if w.Forecast[2].Precipitation != 2.25 || w.Forecast[2].Date != "2024-03-15 06:00:00" {
		t.Errorf("forecast[2] = %+v", w.Forecast[2])
	}

	again := g.Weather(ctx, "  ROME ")
	if !reflect.DeepEqual(again.Data, w) || calls.Load() != 1 {
		t.Errorf("second lookup should be served from cache (calls=%d)", calls.Load())
	}
	if m.ProviderCalls("weather", "cache") != 1 || m.ProviderCalls("weather", "ok") != 1 {
		t.Errorf("metrics: cache=%d ok=%d", m.ProviderCalls("weather", "cache"), m.ProviderCalls("weather", "ok"))
	}
}

func TestMalformedResponseFallsBackUncached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	g := newTestGateway(serverConfig(srv))
	for i := 0; i < 2; i++ {
		res := g.Weather(context.Background(), "Rome")
		if !res.Fallback || res.Reason != "malformed_response" {
			t.Fatalf("want malformed fallback, got %+v", res)
		}
		if !reflect.DeepEqual(res.Data, fallbackWeather()) {
			t.Errorf("unexpected fallback payload %+v", res.Data)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("fallbacks must not be cached, upstream called %d times", calls.Load())
	}
}

func TestRestaurantsAndAttractions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/places/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "fsq-key" || r.URL.Query().Get("near") != "Rome" {
			http.Error(w, "denied", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"fsq_id":"f1","name":"Da Enzo","categories":[{"name":"Trattoria"}],
			"location":{"formatted_address":"Via dei Vascellari 29, Roma"},"photos":[{"prefix":"https://img/","suffix":"/a.jpg"}]}]}`))
	})
	mux.HandleFunc("GET /api/v1/location/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") != "attractions" {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"location_id":"187791","name":"Colosseum","rating":"4.5",
			"address_obj":{"address_string":"Piazza del Colosseo, Rome"}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	g := newTestGateway(serverConfig(srv))

	rs := g.Restaurants(context.Background(), "Rome")
	if rs.Fallback || len(rs.Data) != 1 {
		t.Fatalf("restaurants: %+v", rs)
	}
	r := rs.Data[0]
	if r.Category != "Trattoria" || r.Rating != 4.0 || r.Price != 2 || r.Address != "Via dei Vascellari 29, Roma" || r.Photos[0] != "https://img/300x300/a.jpg" {
		t.Errorf("restaurant = %+v", r)
	}

	as := g.Attractions(context.Background(), "Rome")
	if as.Fallback || len(as.Data) != 1 || as.Data[0].Rating != 4.5 || as.Data[0].Address != "Piazza del Colosseo, Rome" {
		t.Errorf("attractions: %+v", as)
	}
}

func TestSafetyUsesGeocodedLocation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /maps/api/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Rome, Italy","place_id":"p1","geometry":{"location":{"lat":41.9,"lng":12.5}}}]}`))
	})
	mux.HandleFunc("GET /v1/incidents/raw-data", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Header.Get("x-api-key") != "cm-key" || q.Get("lat") != "41.9" || q.Get("lon") != "12.5" ||
			q.Get("datetime_end") != "2024-05-01T00:00:00Z" || q.Get("datetime_ini") != "2024-04-01T00:00:00Z" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		incidents := make([]map[string]string, 7)
		for i := range incidents {
			incidents[i] = map[string]string{"incident_type": fmt.Sprintf("theft-%d", i), "incident_address": "Termini"}
		}
		writeJSON(w, map[string]any{"incidents": incidents})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(serverConfig(srv))
	g.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	res := g.Safety(context.Background(), "Rome")
	if res.Fallback {
		t.Fatalf("unexpected fallback: %s", res.Reason)
	}
	if res.Data.SafetyLevel != 7 || len(res.Data.Alerts) != 5 || len(res.Data.Recommendations) != 4 {
		t.Errorf("report = %+v", res.Data)
	}
	if res.Data.Alerts[0].Severity != "medium" || res.Data.Alerts[4].Type != "theft-4" {
		t.Errorf("alerts = %+v", res.Data.Alerts)
	}
}

func TestRouteThroughWaypoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("origin") != "1,2" || q.Get("destination") != "5,6" || q.Get("waypoints") != "3,4" || q.Get("mode") != "driving" {
			http.Error(w, "bad "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"summary":"A1","overview_polyline":{"points":"abc"},
			"legs":[{"distance":{"value":1000},"duration":{"value":60},"steps":[{"html_instructions":"Head <b>north</b>"}]},
			        {"distance":{"value":500},"duration":{"value":30},"steps":[]}]}]}`))
	}))
	defer srv.Close()

	res := newTestGateway(serverConfig(srv)).Route(context.Background(), ParseWaypoints("1,2|3,4|5,6"))
	if res.Fallback {
		t.Fatalf("unexpected fallback: %s", res.Reason)
	}
	if res.Data.DistanceMeters != 1500 || res.Data.DurationSeconds != 90 || res.Data.Steps[0] != "Head north" || res.Data.Polyline != "abc" {
		t.Errorf("route = %+v", res.Data)
	}

	short := newTestGateway(serverConfig(srv)).Route(context.Background(), nil)
	if !short.Fallback || short.Reason != "invalid_params" {
		t.Errorf("single waypoint should fall back with invalid_params, got %+v", short)
	}
}

func TestGoogleRequestDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer srv.Close()
	res := newTestGateway(serverConfig(srv)).Geocode(context.Background(), "Rome")
	if !res.Fallback || res.Reason != "credentials_missing" || res.Data.Name != "Rome" || res.Data.HasCoordinates() {
		t.Errorf("geocode = %+v", res)
	}
}

type fakeLLM struct {
	reply     string
	err       error
	available bool
	got       []llm.Message
	opts      llm.Options
}

func (f *fakeLLM) Complete(_ context.Context, msgs []llm.Message, opts llm.Options) (*llm.Response, error) {
	f.got, f.opts = msgs, opts
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply}, nil
}

func (f *fakeLLM) StreamComplete(context.Context, []llm.Message, llm.Options) (<-chan llm.StreamEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) Name() string    { return "fake" }
func (f *fakeLLM) Available() bool { return f.available }

func TestChat(t *testing.T) {
	p := &fakeLLM{reply: "  Try Trastevere.  ", available: true}
	g := newTestGateway(Config{}, WithLLM(p))
	res := g.Chat(context.Background(), ChatRequest{
		Message: "Where to eat?",
		History: []llm.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		Context: "Trip to Rome",
	})
	if res.Fallback || res.Data != "Try Trastevere." {
		t.Fatalf("chat = %+v", res)
	}
	if len(p.got) != 4 || p.got[0].Role != "system" || !strings.Contains(p.got[0].Content, "Trip to Rome") || p.got[3].Content != "Where to eat?" {
		t.Errorf("messages sent = %+v", p.got)
	}

	p.err = &llm.StatusError{StatusCode: 429, Body: "slow down"}
	res = g.Chat(context.Background(), ChatRequest{Message: "Where to eat?"})
	if !res.Fallback || res.Reason != "upstream_unavailable" || res.Data != cannedReply("Where to eat?") {
		t.Errorf("429 should fall back to canned reply, got %+v", res)
	}
}

func TestCannedReplyDeterministic(t *testing.T) {
	seen := map[string]bool{}
	for _, msg := range []string{"a", "b", "c", "d", "e", "f", "Plan a 3-day trip to Rome"} {
		if cannedReply(msg) != cannedReply(msg) {
			t.Fatalf("reply for %q not stable", msg)
		}
		seen[cannedReply(msg)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected replies to vary with the message")
	}
}

func TestDraftItineraryRequestsJSON(t *testing.T) {
	p := &fakeLLM{reply: `{"days":[]}`, available: true}
	g := newTestGateway(Config{}, WithLLM(p))
	res := g.DraftItinerary(context.Background(), ItineraryRequest{Destination: "Rome", Duration: 3, Budget: "900", Travelers: 2})
	if res.Fallback || res.Data != `{"days":[]}` || !p.opts.JSON {
		t.Errorf("draft = %+v opts = %+v", res, p.opts)
	}
	if prompt := p.got[1].Content; !strings.Contains(prompt, "Duration: 3 days") || !strings.Contains(prompt, "Budget: $900") {
		t.Errorf("prompt = %s", prompt)
	}

	p.available = false
	if res := g.DraftItinerary(context.Background(), ItineraryRequest{Destination: "Rome", Duration: 3}); !res.Fallback || res.Data != "" {
		t.Errorf("unavailable provider should yield empty fallback, got %+v", res)
	}
}

func TestCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "sk_test" || r.URL.Path != "/v1/checkout/sessions" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		if r.PostForm.Get("line_items[0][price]") != "price_pro" || r.PostForm.Get("client_reference_id") != "u1" ||
			r.PostForm.Get("success_url") != "https://app.example/dashboard?success=true" ||
			r.PostForm.Get("cancel_url") != "https://app.example/pricing?canceled=true" {
			http.Error(w, "bad form "+r.PostForm.Encode(), http.StatusBadRequest)
			return
		}
		writeJSON(w, Session{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"})
	}))
	defer srv.Close()

	g := newTestGateway(serverConfig(srv))
	s, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{PriceID: "price_pro", UserID: "u1"})
	if err != nil || s.ID != "cs_1" {
		t.Fatalf("checkout = %+v, %v", s, err)
	}

	res, err := g.Call(context.Background(), KindCheckout, map[string]string{"price_id": "price_pro", "user_id": "u1"})
	if err != nil || res.Data.(Session).URL == "" {
		t.Errorf("Call checkout = %+v, %v", res, err)
	}
}

func TestActionFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestGateway(serverConfig(srv)).CreatePortalSession(context.Background(), "cus_1")
	if !errors.Is(err, ErrActionFailed) || !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("portal error = %v", err)
	}

	_, err = newTestGateway(Config{}).Call(context.Background(), KindBillingPortal, map[string]string{"customer_id": "cus_1"})
	if !errors.Is(err, ErrActionFailed) || !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("unconfigured portal error = %v", err)
	}

	if _, err := newTestGateway(Config{}).Call(context.Background(), "teleport", nil); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind error = %v", err)
	}
}

func TestSubscriptionStatus(t *testing.T) {
	g := newTestGateway(Config{})
	if res := g.SubscriptionStatus(context.Background(), "cus_1"); !res.Fallback || res.Data.Status != SubscriptionInactive {
		t.Errorf("unconfigured status = %+v", res)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Query().Get("customer") != "cus_1" {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"sub_1","status":"active","current_period_end":1717200000,
			"items":{"data":[{"price":{"id":"price_pro"}}]}}]}`))
	}))
	defer srv.Close()
	res := newTestGateway(serverConfig(srv)).SubscriptionStatus(context.Background(), "cus_1")
	if res.Fallback || res.Data.Status != "active" || res.Data.PriceID != "price_pro" {
		t.Errorf("status = %+v", res)
	}
}

func TestParseWaypoints(t *testing.T) {
	got := ParseWaypoints("41.9,12.5| bad |45.4, 9.2|x,y")
	want := []LatLng{{41.9, 12.5}, {45.4, 9.2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseWaypoints = %v, want %v", got, want)
	}
	if ParseWaypoints("") != nil {
		t.Error("empty input should yield nil")
	}
}

func TestCacheBackends(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("empty cache should miss")
	}
	c.Set(ctx, "k", []byte("v"), time.Minute)
	if b, ok := c.Get(ctx, "k"); !ok || string(b) != "v" {
		t.Errorf("Get = %q, %v", b, ok)
	}
	c.Set(ctx, "gone", []byte("v"), time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	if _, ok := c.Get(ctx, "gone"); ok {
		t.Error("expired entry should miss")
	}

	if _, err := NewRedisCache("not a url"); err == nil {
		t.Error("expected error for invalid redis url")
	}
	if cacheKey(KindWeather, "  New   YORK ") != "weather:new york" {
		t.Errorf("cacheKey = %q", cacheKey(KindWeather, "  New   YORK "))
	}
}

func TestFlexFloat(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
		C flexFloat `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"4.5","b":3,"c":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != 4.5 || v.B != 3 || v.C != 0 {
		t.Errorf("got %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a":"four"}`), &v); err == nil {
		t.Error("expected error for non-numeric string")
	}
}
