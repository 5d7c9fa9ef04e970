package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tripplanner/internal/domain"
)

type crimeometerIncidents struct {
	Incidents []struct {
		Type        string `json:"incident_type"`
		Address     string `json:"incident_address"`
		Description string `json:"incident_description"`
		Datetime    string `json:"incident_datetime"`
	} `json:"incidents"`
}

var safetyRecommendations = []string{
	"Avoid walking alone at night",
	"Keep valuables secure",
	"Stay in well-lit areas",
	"Use official transportation",
}

// Safety reports incidents from the last 30 days within 10 miles of
// location. Results are cached for a day.
func (g *Gateway) Safety(ctx context.Context, location string) Result[domain.SafetyReport] {
	return fetch(ctx, g, KindSafety, cacheKey(KindSafety, location), safetyTTL, func(ctx context.Context) (domain.SafetyReport, error) {
		if g.cfg.CrimeometerAPIKey == "" {
			return domain.SafetyReport{}, fmt.Errorf("crimeometer: %w", ErrCredentialsMissing)
		}
		geo := g.Geocode(ctx, location)
		if geo.Fallback || !geo.Data.HasCoordinates() {
			return domain.SafetyReport{}, fmt.Errorf("crimeometer: %w: cannot locate %q", ErrUpstreamUnavailable, location)
		}

		end := g.now().UTC()
		q := url.Values{}
		q.Set("lat", strconv.FormatFloat(geo.Data.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(geo.Data.Lng, 'f', -1, 64))
		q.Set("distance", "10mi")
		q.Set("datetime_ini", end.Add(-30*24*time.Hour).Format(time.RFC3339))
		q.Set("datetime_end", end.Format(time.RFC3339))
		h := http.Header{}
		h.Set("x-api-key", g.cfg.CrimeometerAPIKey)

		var resp crimeometerIncidents
		if err := g.getJSON(ctx, "crimeometer", g.cfg.CrimeometerBaseURL+"/v1/incidents/raw-data?"+q.Encode(), h, &resp); err != nil {
			return domain.SafetyReport{}, err
		}
		report := domain.SafetyReport{
			SafetyLevel:     7,
			Alerts:          []domain.SafetyAlert{},
			Recommendations: append([]string(nil), safetyRecommendations...),
		}
		for i, inc := range resp.Incidents {
			if i == 5 {
				break
			}
			report.Alerts = append(report.Alerts, domain.SafetyAlert{
				Type:        inc.Type,
				Severity:    "medium",
				Location:    inc.Address,
				Description: inc.Description,
				Timestamp:   inc.Datetime,
			})
		}
		return report, nil
	}, fallbackSafety)
}
