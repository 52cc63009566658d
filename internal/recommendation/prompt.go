package recommendation

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/wanderplan/wanderplan-api/internal/domain"
)

const promptTemplate = `You are a travel advisor. Explain why the place below suits these
travelers and give practical visiting tips.

Place: {{ .PlaceName }}

Travelers: {{ .Profile.GroupComposition }}{{ if .Profile.HealthStatus }}, health: {{ .Profile.HealthStatus }}{{ end }}
Transport: {{ .Profile.TransportMode }}
{{- if .Profile.Preferences }}
Preferences: {{ join .Profile.Preferences ", " }}
{{- end }}

Respond with JSON of the form
{"recommendations": {"reasons": ["..."],
  "tips": {"description": "...", "events": ["..."], "bestVisitTime": "...",
           "estimatedDuration": "...", "photoSpots": ["..."],
           "practicalTips": ["..."],
           "alternativePlaces": [{"name": "...", "reason": "...", "distance": "..."}]}}}.
Do not include any text outside the JSON object.`

var promptTmpl = template.Must(template.New("recommendation").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(promptTemplate))

type promptData struct {
	PlaceName string
	Profile   domain.TravelerProfile
}

func buildPrompt(placeName string, profile domain.TravelerProfile) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, promptData{PlaceName: placeName, Profile: profile}); err != nil {
		return "", fmt.Errorf("failed to render recommendation prompt: %w", err)
	}
	return buf.String(), nil
}
