// Package generation defines the contracts the orchestration core requires
// of its external collaborators: the generative-model backend, place lookup
// and weather forecast services. These interfaces are the boundary between
// the application core and the outside world, following the hexagonal
// architecture pattern.
package generation

import "context"

// Backend is the generative-model collaborator. Implementations return the
// raw model payload as a string; the caller owns parsing and validation.
type Backend interface {
	// GenerateSchedule invokes the model with a schedule prompt and returns
	// the raw response payload.
	GenerateSchedule(ctx context.Context, model, prompt string, promptContext map[string]any) (string, error)

	// GenerateRecommendation invokes the model with a per-place
	// recommendation prompt and returns the raw response payload.
	GenerateRecommendation(ctx context.Context, model, prompt string, promptContext map[string]any) (string, error)
}

// PlaceCandidate is one result of a place lookup.
type PlaceCandidate struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// LocationLookup resolves destination names to place candidates.
type LocationLookup interface {
	// Search returns up to limit candidates matching the name.
	Search(ctx context.Context, name string, limit int) ([]PlaceCandidate, error)
}

// DailyForecast is one day of a weather forecast.
type DailyForecast struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	TempMinC      float64 `json:"temp_min_c"`
	TempMaxC      float64 `json:"temp_max_c"`
	Precipitation float64 `json:"precipitation_mm"`
	Conditions    string  `json:"conditions"`
}

// WeatherForecast is a date-ranged forecast for one location.
type WeatherForecast struct {
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Daily     []DailyForecast `json:"daily"`
}

// WeatherLookup fetches forecasts for coordinates over a date range.
type WeatherLookup interface {
	// Forecast returns the daily forecast between startDate and endDate
	// (inclusive, YYYY-MM-DD).
	Forecast(ctx context.Context, lat, lon float64, startDate, endDate string) (*WeatherForecast, error)
}
