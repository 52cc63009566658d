package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterminism(t *testing.T) {
	profile := TravelerProfile{
		GroupComposition: "couple",
		HealthStatus:     "good",
		TransportMode:    "public_transit",
		Preferences:      []string{"museums", "food", "hiking"},
	}

	assert.Equal(t, profile.Fingerprint(), profile.Fingerprint())
	assert.Len(t, profile.Fingerprint(), 64)
}

func TestFingerprintIgnoresPreferenceOrder(t *testing.T) {
	a := TravelerProfile{
		GroupComposition: "family",
		TransportMode:    "car",
		Preferences:      []string{"beaches", "museums"},
	}
	b := TravelerProfile{
		GroupComposition: "family",
		TransportMode:    "car",
		Preferences:      []string{"museums", "beaches"},
	}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintNormalizesCaseAndWhitespace(t *testing.T) {
	a := TravelerProfile{GroupComposition: "Solo", TransportMode: "walking"}
	b := TravelerProfile{GroupComposition: " solo ", TransportMode: "Walking"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintDiffersAcrossProfiles(t *testing.T) {
	base := TravelerProfile{
		GroupComposition: "couple",
		HealthStatus:     "good",
		TransportMode:    "car",
		Preferences:      []string{"food"},
	}

	variants := []TravelerProfile{
		{GroupComposition: "solo", HealthStatus: "good", TransportMode: "car", Preferences: []string{"food"}},
		{GroupComposition: "couple", HealthStatus: "limited_mobility", TransportMode: "car", Preferences: []string{"food"}},
		{GroupComposition: "couple", HealthStatus: "good", TransportMode: "walking", Preferences: []string{"food"}},
		{GroupComposition: "couple", HealthStatus: "good", TransportMode: "car", Preferences: []string{"food", "art"}},
	}

	for _, v := range variants {
		assert.NotEqual(t, base.Fingerprint(), v.Fingerprint())
	}
}
