package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"tripplanner/internal/domain"
)

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) String() string { return fmt.Sprintf("%g,%g", p.Lat, p.Lng) }

type googleGeometry struct {
	Location LatLng `json:"location"`
}

type googleStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// check maps the Maps web-service status field onto the gateway errors.
// ZERO_RESULTS is a valid empty answer.
func (s googleStatus) check() error {
	switch s.Status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "":
		return malformed("google", errors.New("missing status"))
	case "REQUEST_DENIED":
		return fmt.Errorf("google: %w: %s", ErrCredentialsMissing, s.ErrorMessage)
	default:
		return fmt.Errorf("google: %w: %s %s", ErrUpstreamUnavailable, s.Status, s.ErrorMessage)
	}
}

func (g *Gateway) googleGet(ctx context.Context, path string, q url.Values, out any) error {
	if g.cfg.GoogleMapsAPIKey == "" {
		return fmt.Errorf("google: %w", ErrCredentialsMissing)
	}
	q.Set("key", g.cfg.GoogleMapsAPIKey)
	return g.getJSON(ctx, "google", g.cfg.GoogleMapsBaseURL+path+"?"+q.Encode(), nil, out)
}

type googleGeocode struct {
	googleStatus
	Results []struct {
		FormattedAddress string         `json:"formatted_address"`
		PlaceID          string         `json:"place_id"`
		Geometry         googleGeometry `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address. The fallback echoes the query with
// no coordinates. Results are cached for a day.
func (g *Gateway) Geocode(ctx context.Context, address string) Result[domain.Location] {
	return fetch(ctx, g, KindGeocode, cacheKey(KindGeocode, address), geocodeTTL, func(ctx context.Context) (domain.Location, error) {
		q := url.Values{}
		q.Set("address", address)
		var resp googleGeocode
		if err := g.googleGet(ctx, "/maps/api/geocode/json", q, &resp); err != nil {
			return domain.Location{}, err
		}
		if err := resp.check(); err != nil {
			return domain.Location{}, err
		}
		if len(resp.Results) == 0 {
			return domain.Location{}, fmt.Errorf("google: %w: no match for %q", ErrUpstreamUnavailable, address)
		}
		r := resp.Results[0]
		return domain.Location{
			Name:    address,
			Address: r.FormattedAddress,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
			PlaceID: r.PlaceID,
		}, nil
	}, func() domain.Location { return fallbackGeocode(address) })
}

type googlePlaces struct {
	googleStatus
	Results []struct {
		Name             string         `json:"name"`
		FormattedAddress string         `json:"formatted_address"`
		PlaceID          string         `json:"place_id"`
		Rating           float64        `json:"rating"`
		Types            []string       `json:"types"`
		Geometry         googleGeometry `json:"geometry"`
	} `json:"results"`
}

// SearchPlaces runs a text search within 50 km of near.
func (g *Gateway) SearchPlaces(ctx context.Context, query string, near LatLng) Result[[]domain.Place] {
	return fetch(ctx, g, KindPlaces, "", 0, func(ctx context.Context) ([]domain.Place, error) {
		q := url.Values{}
		q.Set("query", query)
		q.Set("location", near.String())
		q.Set("radius", "50000")
		var resp googlePlaces
		if err := g.googleGet(ctx, "/maps/api/place/textsearch/json", q, &resp); err != nil {
			return nil, err
		}
		if err := resp.check(); err != nil {
			return nil, err
		}
		out := make([]domain.Place, 0, len(resp.Results))
		for _, r := range resp.Results {
			out = append(out, domain.Place{
				Location: domain.Location{
					Name:    r.Name,
					Address: r.FormattedAddress,
					Lat:     r.Geometry.Location.Lat,
					Lng:     r.Geometry.Location.Lng,
					PlaceID: r.PlaceID,
				},
				Rating: r.Rating,
				Types:  r.Types,
			})
		}
		return out, nil
	}, fallbackPlaces)
}

type googleDirections struct {
	googleStatus
	Routes []struct {
		Summary          string `json:"summary"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
			Steps []struct {
				HTMLInstructions string `json:"html_instructions"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Route computes a driving route through waypoints in order. The first and
// last points are origin and destination.
func (g *Gateway) Route(ctx context.Context, waypoints []LatLng) Result[domain.Route] {
	return fetch(ctx, g, KindRouting, "", 0, func(ctx context.Context) (domain.Route, error) {
		if len(waypoints) < 2 {
			return domain.Route{}, fmt.Errorf("route: %w: need at least two waypoints", ErrInvalidParams)
		}
		q := url.Values{}
		q.Set("origin", waypoints[0].String())
		q.Set("destination", waypoints[len(waypoints)-1].String())
		q.Set("mode", "driving")
		if mid := waypoints[1 : len(waypoints)-1]; len(mid) > 0 {
			parts := make([]string, len(mid))
			for i, p := range mid {
				parts[i] = p.String()
			}
			q.Set("waypoints", strings.Join(parts, "|"))
		}
		var resp googleDirections
		if err := g.googleGet(ctx, "/maps/api/directions/json", q, &resp); err != nil {
			return domain.Route{}, err
		}
		if err := resp.check(); err != nil {
			return domain.Route{}, err
		}
		if len(resp.Routes) == 0 {
			return domain.Route{}, fmt.Errorf("google: %w: no route found", ErrUpstreamUnavailable)
		}
		r := resp.Routes[0]
		route := domain.Route{Summary: r.Summary, Polyline: r.OverviewPolyline.Points}
		for _, leg := range r.Legs {
			route.DistanceMeters += leg.Distance.Value
			route.DurationSeconds += leg.Duration.Value
			for _, st := range leg.Steps {
				route.Steps = append(route.Steps, htmlTag.ReplaceAllString(st.HTMLInstructions, ""))
			}
		}
		return route, nil
	}, fallbackRoute)
}
