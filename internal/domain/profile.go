package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// TravelerProfile captures the traveler attributes that shape a
// recommendation: who is traveling, how they move, and what they enjoy.
// Two profiles with the same normalized attributes share recommendations
// through the cache.
type TravelerProfile struct {
	GroupComposition string   `json:"group_composition"`
	HealthStatus     string   `json:"health_status"`
	TransportMode    string   `json:"transport_mode"`
	Preferences      []string `json:"preferences"`
}

// Fingerprint returns the hex SHA-256 digest of the profile's canonical
// form. Fields are trimmed and lowercased, and the preference list is
// sorted before hashing so that semantically identical profiles hash the
// same regardless of preference order.
func (p TravelerProfile) Fingerprint() string {
	prefs := make([]string, len(p.Preferences))
	for i, pref := range p.Preferences {
		prefs[i] = normalizeField(pref)
	}
	sort.Strings(prefs)

	canonical := strings.Join([]string{
		normalizeField(p.GroupComposition),
		normalizeField(p.HealthStatus),
		normalizeField(p.TransportMode),
		strings.Join(prefs, "|"),
	}, "\n")

	digest := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(digest[:])
}

func normalizeField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
