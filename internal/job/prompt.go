package job

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/generation"
)

// schedulePromptTemplate instructs the model to produce a full itinerary.
// The exact wording is deliberately plain; collected context rides along
// separately in the prompt context map.
const schedulePromptTemplate = `You are a travel planner. Create a detailed day-by-day
itinerary for the following trip and respond with a single JSON object.

Destinations:
{{- range .Destinations }}
- {{ .Name }} from {{ .StartDate }} to {{ .EndDate }}
{{- end }}

Travelers: {{ .Profile.GroupComposition }}{{ if .Profile.HealthStatus }}, health: {{ .Profile.HealthStatus }}{{ end }}
Transport: {{ .Profile.TransportMode }}
{{- if .Profile.Preferences }}
Preferences: {{ join .Profile.Preferences ", " }}
{{- end }}

Respond with JSON of the form {"days": [{"date", "destination", "activities": [...]}]}.
Do not include any text outside the JSON object.`

// regeneratePromptTemplate instructs the model to rework a single day.
const regeneratePromptTemplate = `You are a travel planner. Rework day {{ .Day }} of the
itinerary below and respond with a single JSON object of the same shape.

Current day:
{{ .CurrentDay }}

{{- if .Feedback }}
Traveler feedback: {{ .Feedback }}
{{- end }}
Travelers: {{ .Profile.GroupComposition }}, transport: {{ .Profile.TransportMode }}

Respond with JSON of the form {"date", "destination", "activities": [...]}.
Do not include any text outside the JSON object.`

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

var (
	scheduleTmpl   = template.Must(template.New("schedule").Funcs(promptFuncs).Parse(schedulePromptTemplate))
	regenerateTmpl = template.Must(template.New("regenerate").Funcs(promptFuncs).Parse(regeneratePromptTemplate))
)

// buildSchedulePrompt renders the schedule prompt for a request.
func buildSchedulePrompt(req domain.ScheduleRequest) (string, error) {
	var buf bytes.Buffer
	if err := scheduleTmpl.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("failed to render schedule prompt: %w", err)
	}
	return buf.String(), nil
}

// buildRegeneratePrompt renders the day regeneration prompt.
func buildRegeneratePrompt(req domain.RegenerateDayRequest, currentDay string) (string, error) {
	data := struct {
		domain.RegenerateDayRequest
		CurrentDay string
	}{req, currentDay}

	var buf bytes.Buffer
	if err := regenerateTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render regeneration prompt: %w", err)
	}
	return buf.String(), nil
}

// buildPromptContext assembles the auxiliary facts collected in stages 1
// and 2 for the generation backend.
func buildPromptContext(
	locations map[string]generation.PlaceCandidate,
	forecasts map[string]*generation.WeatherForecast,
) map[string]any {
	promptContext := make(map[string]any)
	if len(locations) > 0 {
		promptContext["locations"] = locations
	}
	if len(forecasts) > 0 {
		promptContext["weather"] = forecasts
	}
	return promptContext
}
