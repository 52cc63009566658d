// Package weather implements the forecast collaborator over the Open-Meteo
// HTTP API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wanderplan/wanderplan-api/internal/config"
	"github.com/wanderplan/wanderplan-api/internal/generation"
)

// Client implements generation.WeatherLookup.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a weather lookup client from configuration.
func NewClient(cfg config.WeatherConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "weather_lookup"),
	}
}

// forecastResponse mirrors the fields we consume from the Open-Meteo
// daily forecast response.
type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Daily     struct {
		Time             []string  `json:"time"`
		TempMax          []float64 `json:"temperature_2m_max"`
		TempMin          []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

// Forecast returns the daily forecast between startDate and endDate.
func (c *Client) Forecast(
	ctx context.Context,
	lat, lon float64,
	startDate, endDate string,
) (*generation.WeatherForecast, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/forecast?latitude=%f&longitude=%f&start_date=%s&end_date=%s"+
			"&daily=temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code",
		c.baseURL, lat, lon, startDate, endDate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrLookupFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrLookupFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: forecast returned status %d",
			generation.ErrLookupFailed, resp.StatusCode)
	}

	var decoded forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: failed to decode forecast response: %v",
			generation.ErrLookupFailed, err)
	}

	forecast := &generation.WeatherForecast{
		Latitude:  decoded.Latitude,
		Longitude: decoded.Longitude,
		Daily:     make([]generation.DailyForecast, 0, len(decoded.Daily.Time)),
	}

	for i, date := range decoded.Daily.Time {
		day := generation.DailyForecast{Date: date}
		if i < len(decoded.Daily.TempMin) {
			day.TempMinC = decoded.Daily.TempMin[i]
		}
		if i < len(decoded.Daily.TempMax) {
			day.TempMaxC = decoded.Daily.TempMax[i]
		}
		if i < len(decoded.Daily.PrecipitationSum) {
			day.Precipitation = decoded.Daily.PrecipitationSum[i]
		}
		if i < len(decoded.Daily.WeatherCode) {
			day.Conditions = describeWeatherCode(decoded.Daily.WeatherCode[i])
		}
		forecast.Daily = append(forecast.Daily, day)
	}

	return forecast, nil
}

// describeWeatherCode maps WMO weather codes to short labels.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
