package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Call dispatches a provider request by kind. params carries the
// kind-specific fields as strings, as they arrive in a query string. Only
// action kinds and unknown kinds return an error.
func (g *Gateway) Call(ctx context.Context, kind Kind, params map[string]string) (Result[any], error) {
	p := func(key string) string { return strings.TrimSpace(params[key]) }
	location := func() string {
		if v := p("location"); v != "" {
			return v
		}
		return p("destination")
	}

	switch kind {
	case KindFlights:
		adults, _ := strconv.Atoi(p("adults"))
		return erase(g.SearchFlights(ctx, FlightQuery{
			Origin:        p("origin"),
			Destination:   p("destination"),
			DepartureDate: p("departure_date"),
			ReturnDate:    p("return_date"),
			Adults:        adults,
		})), nil
	case KindHotels:
		city := p("city_code")
		if city == "" {
			city = location()
		}
		return erase(g.SearchHotels(ctx, HotelQuery{CityCode: city, CheckIn: p("check_in"), CheckOut: p("check_out")})), nil
	case KindWeather:
		return erase(g.Weather(ctx, location())), nil
	case KindSafety:
		return erase(g.Safety(ctx, location())), nil
	case KindRestaurants:
		return erase(g.Restaurants(ctx, location())), nil
	case KindAttractions:
		return erase(g.Attractions(ctx, location())), nil
	case KindGeocode:
		addr := p("address")
		if addr == "" {
			addr = location()
		}
		return erase(g.Geocode(ctx, addr)), nil
	case KindPlaces:
		lat, _ := strconv.ParseFloat(p("lat"), 64)
		lng, _ := strconv.ParseFloat(p("lng"), 64)
		return erase(g.SearchPlaces(ctx, p("query"), LatLng{Lat: lat, Lng: lng})), nil
	case KindRouting:
		return erase(g.Route(ctx, ParseWaypoints(p("waypoints")))), nil
	case KindGenerativeChat:
		return erase(g.Chat(ctx, ChatRequest{Message: p("message"), Context: p("context")})), nil
	case KindGenerativeItinerary:
		duration, _ := strconv.Atoi(p("duration"))
		travelers, _ := strconv.Atoi(p("travelers"))
		var interests []string
		if v := p("interests"); v != "" {
			for _, s := range strings.Split(v, ",") {
				interests = append(interests, strings.TrimSpace(s))
			}
		}
		return erase(g.DraftItinerary(ctx, ItineraryRequest{
			Destination: p("destination"),
			Duration:    duration,
			Budget:      p("budget"),
			Travelers:   travelers,
			StartDate:   p("start_date"),
			Interests:   interests,
			TravelStyle: p("travel_style"),
		})), nil
	case KindSubscription:
		return erase(g.SubscriptionStatus(ctx, p("customer_id"))), nil
	case KindCheckout:
		s, err := g.CreateCheckoutSession(ctx, CheckoutRequest{
			PriceID:       p("price_id"),
			UserID:        p("user_id"),
			CustomerID:    p("customer_id"),
			CustomerEmail: p("customer_email"),
		})
		if err != nil {
			return Result[any]{}, err
		}
		return Result[any]{Kind: kind, Data: s}, nil
	case KindBillingPortal:
		s, err := g.CreatePortalSession(ctx, p("customer_id"))
		if err != nil {
			return Result[any]{}, err
		}
		return Result[any]{Kind: kind, Data: s}, nil
	default:
		return Result[any]{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func erase[T any](r Result[T]) Result[any] {
	return Result[any]{Kind: r.Kind, Data: r.Data, Fallback: r.Fallback, Reason: r.Reason}
}

// ParseWaypoints parses "lat,lng|lat,lng|..." and skips malformed pairs.
func ParseWaypoints(s string) []LatLng {
	var out []LatLng
	for _, pair := range strings.Split(s, "|") {
		latS, lngS, ok := strings.Cut(pair, ",")
		if !ok {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(latS), 64)
		lng, err2 := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, LatLng{Lat: lat, Lng: lng})
	}
	return out
}
