package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"tripplanner/internal/domain"
)

type openWeatherForecast struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain map[string]float64 `json:"rain"`
	} `json:"list"`
}

// Weather returns current conditions and the next five forecast slots for
// location. Results are cached for an hour.
func (g *Gateway) Weather(ctx context.Context, location string) Result[domain.Weather] {
	return fetch(ctx, g, KindWeather, cacheKey(KindWeather, location), weatherTTL, func(ctx context.Context) (domain.Weather, error) {
		if g.cfg.OpenWeatherAPIKey == "" {
			return domain.Weather{}, fmt.Errorf("openweather: %w", ErrCredentialsMissing)
		}
		q := url.Values{}
		q.Set("q", location)
		q.Set("appid", g.cfg.OpenWeatherAPIKey)
		q.Set("units", "metric")
		var resp openWeatherForecast
		if err := g.getJSON(ctx, "openweather", g.cfg.OpenWeatherBaseURL+"/data/2.5/forecast?"+q.Encode(), nil, &resp); err != nil {
			return domain.Weather{}, err
		}
		if len(resp.List) == 0 {
			return domain.Weather{}, malformed("openweather", errors.New("empty forecast list"))
		}

		describe := func(i int) string {
			if len(resp.List[i].Weather) == 0 {
				return ""
			}
			return resp.List[i].Weather[0].Description
		}
		first := resp.List[0]
		w := domain.Weather{
			Current: domain.WeatherNow{
				Temperature: first.Main.Temp,
				Condition:   describe(0),
				Humidity:    first.Main.Humidity,
				WindSpeed:   first.Wind.Speed,
			},
		}
		for i := 0; i < len(resp.List) && i < 5; i++ {
			item := resp.List[i]
			w.Forecast = append(w.Forecast, domain.WeatherDay{
				Date:          item.DtTxt,
				Temperature:   item.Main.Temp,
				Condition:     describe(i),
				Precipitation: item.Rain["3h"],
			})
		}
		return w, nil
	}, fallbackWeather)
}
