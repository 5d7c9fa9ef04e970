package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"tripplanner/internal/domain"
)

type foursquareSearch struct {
	Results *[]struct {
		FsqID      string `json:"fsq_id"`
		Name       string `json:"name"`
		Categories []struct {
			Name string `json:"name"`
		} `json:"categories"`
		Rating   float64 `json:"rating"`
		Price    int     `json:"price"`
		Location struct {
			Address          string `json:"address"`
			FormattedAddress string `json:"formatted_address"`
		} `json:"location"`
		Photos []struct {
			Prefix string `json:"prefix"`
			Suffix string `json:"suffix"`
		} `json:"photos"`
	} `json:"results"`
}

// Restaurants searches Foursquare for restaurants near location.
func (g *Gateway) Restaurants(ctx context.Context, location string) Result[[]domain.Restaurant] {
	return fetch(ctx, g, KindRestaurants, "", 0, func(ctx context.Context) ([]domain.Restaurant, error) {
		if g.cfg.FoursquareAPIKey == "" {
			return nil, fmt.Errorf("foursquare: %w", ErrCredentialsMissing)
		}
		q := url.Values{}
		q.Set("query", "restaurant")
		q.Set("near", location)
		q.Set("limit", "20")
		h := http.Header{}
		h.Set("Authorization", g.cfg.FoursquareAPIKey)
		var resp foursquareSearch
		if err := g.getJSON(ctx, "foursquare", g.cfg.FoursquareBaseURL+"/v3/places/search?"+q.Encode(), h, &resp); err != nil {
			return nil, err
		}
		if resp.Results == nil {
			return nil, malformed("foursquare", errors.New("missing results"))
		}
		out := make([]domain.Restaurant, 0, len(*resp.Results))
		for _, p := range *resp.Results {
			r := domain.Restaurant{
				ID:       p.FsqID,
				Name:     p.Name,
				Category: "Restaurant",
				Rating:   p.Rating,
				Price:    p.Price,
				Address:  p.Location.FormattedAddress,
			}
			if len(p.Categories) > 0 && p.Categories[0].Name != "" {
				r.Category = p.Categories[0].Name
			}
			if r.Rating == 0 {
				r.Rating = 4.0
			}
			if r.Price == 0 {
				r.Price = 2
			}
			if r.Address == "" {
				r.Address = p.Location.Address
			}
			for _, ph := range p.Photos {
				r.Photos = append(r.Photos, ph.Prefix+"300x300"+ph.Suffix)
			}
			out = append(out, r)
		}
		return out, nil
	}, func() []domain.Restaurant { return fallbackRestaurants(location) })
}

type tripAdvisorSearch struct {
	Data *[]struct {
		LocationID  string    `json:"location_id"`
		Name        string    `json:"name"`
		Rating      flexFloat `json:"rating"`
		Description string    `json:"description"`
		AddressObj  struct {
			AddressString string `json:"address_string"`
		} `json:"address_obj"`
		Photo struct {
			Images struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"images"`
		} `json:"photo"`
	} `json:"data"`
}

// Attractions searches TripAdvisor for attractions at location.
func (g *Gateway) Attractions(ctx context.Context, location string) Result[[]domain.Attraction] {
	return fetch(ctx, g, KindAttractions, "", 0, func(ctx context.Context) ([]domain.Attraction, error) {
		if g.cfg.TripAdvisorAPIKey == "" {
			return nil, fmt.Errorf("tripadvisor: %w", ErrCredentialsMissing)
		}
		q := url.Values{}
		q.Set("key", g.cfg.TripAdvisorAPIKey)
		q.Set("searchQuery", location)
		q.Set("category", "attractions")
		var resp tripAdvisorSearch
		if err := g.getJSON(ctx, "tripadvisor", g.cfg.TripAdvisorBaseURL+"/api/v1/location/search?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		if resp.Data == nil {
			return nil, malformed("tripadvisor", errors.New("missing data"))
		}
		out := make([]domain.Attraction, 0, len(*resp.Data))
		for _, a := range *resp.Data {
			att := domain.Attraction{
				ID:          a.LocationID,
				Name:        a.Name,
				Rating:      float64(a.Rating),
				Description: a.Description,
				Address:     a.AddressObj.AddressString,
			}
			if u := a.Photo.Images.Medium.URL; u != "" {
				att.Photos = []string{u}
			}
			out = append(out, att)
		}
		return out, nil
	}, func() []domain.Attraction { return fallbackAttractions(location) })
}
