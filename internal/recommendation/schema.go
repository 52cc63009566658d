// Package recommendation implements the per-place recommendation service:
// a content-addressed cache over the generation backend, keyed by place ID
// and traveler profile fingerprint.
package recommendation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// recommendationSchema is the contract the backend payload must satisfy
// before it is cached or returned. Reasons explain why the place suits the
// profile; tips carry visiting advice: a description, seasonal events,
// the best time to visit, photo spots, practical tips and nearby
// alternatives.
const recommendationSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["recommendations"],
	"properties": {
		"recommendations": {
			"type": "object",
			"required": ["reasons"],
			"properties": {
				"reasons": {
					"type": "array",
					"minItems": 1,
					"items": {"type": "string", "minLength": 1}
				},
				"tips": {
					"type": "object",
					"properties": {
						"description": {"type": "string"},
						"events": {
							"type": "array",
							"items": {"type": "string"}
						},
						"bestVisitTime": {"type": "string"},
						"estimatedDuration": {"type": "string"},
						"photoSpots": {
							"type": "array",
							"items": {"type": "string"}
						},
						"practicalTips": {
							"type": "array",
							"items": {"type": "string"}
						},
						"alternativePlaces": {
							"type": "array",
							"items": {
								"type": "object",
								"required": ["name", "reason"],
								"properties": {
									"name": {"type": "string"},
									"reason": {"type": "string"},
									"distance": {"type": "string"}
								}
							}
						}
					}
				}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(recommendationSchema)

// validatePayload checks a candidate payload against the recommendation
// schema, reporting every violation in one error.
func validatePayload(payload []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("recommendation payload is not valid JSON: %w", err)
	}

	if !result.Valid() {
		msg := "recommendation payload rejected:"
		for _, desc := range result.Errors() {
			msg += fmt.Sprintf(" %s;", desc)
		}
		return fmt.Errorf("%s", msg)
	}

	return nil
}
