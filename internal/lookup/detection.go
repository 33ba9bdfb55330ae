package lookup

import (
	"encoding/json"
	"maps"
	"math"
	"strings"
	"time"

	"origlang/internal/language"
)

// DefaultReliabilityThreshold is the confidence IsReliable uses when given a
// non-positive threshold.
const DefaultReliabilityThreshold = 0.7

// Detection is the outcome of one backend resolving a Query.
type Detection struct {
	OriginalLanguage    string         `json:"original_language,omitempty"`
	Confidence          float64        `json:"confidence"`
	Source              string         `json:"source"`
	Method              string         `json:"method"`
	Details             string         `json:"details,omitempty"`
	Title               string         `json:"title,omitempty"`
	Year                int            `json:"year,omitempty"`
	IMDbID              string         `json:"imdb_id,omitempty"`
	TMDbID              string         `json:"tmdb_id,omitempty"`
	SpokenLanguages     []string       `json:"spoken_languages"`
	ProductionCountries []string       `json:"production_countries"`
	RawResponse         map[string]any `json:"raw_response,omitempty"` // JSON-native values only
	DetectionTimeMs     float64        `json:"detection_time_ms"`
	Timestamp           time.Time      `json:"timestamp"`
}

// NewDetection returns a normalized copy of d. Confidence is clamped into
// [0,1] and the language code lower-cased. Slices are freshly allocated and
// non-nil, RawResponse is reduced to JSON-native values so it survives a
// cache round trip, and Timestamp is set to now when zero.
func NewDetection(d Detection) *Detection {
	out := d
	out.Confidence = ClampConfidence(d.Confidence)
	out.OriginalLanguage = strings.ToLower(strings.TrimSpace(d.OriginalLanguage))
	out.SpokenLanguages = cloneStrings(d.SpokenLanguages)
	out.ProductionCountries = cloneStrings(d.ProductionCountries)
	out.RawResponse = nil
	if len(d.RawResponse) > 0 {
		out.RawResponse = cloneRaw(d.RawResponse)
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	return &out
}

// ClampConfidence forces v into [0,1]; NaN becomes 0.
func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Clone returns a deep copy safe to hand to another owner.
func (d *Detection) Clone() *Detection {
	if d == nil {
		return nil
	}
	out := *d
	out.SpokenLanguages = cloneStrings(d.SpokenLanguages)
	out.ProductionCountries = cloneStrings(d.ProductionCountries)
	if d.RawResponse != nil {
		out.RawResponse = cloneRaw(d.RawResponse)
	}
	return &out
}

// cloneRaw deep-copies raw through JSON, so numbers come back as float64
// and nested values as map[string]any or []any.
func cloneRaw(raw map[string]any) map[string]any {
	data, err := json.Marshal(raw)
	if err != nil {
		return maps.Clone(raw)
	}
	out := make(map[string]any, len(raw))
	if err := json.Unmarshal(data, &out); err != nil {
		return maps.Clone(raw)
	}
	return out
}

// IsReliable reports whether the confidence reaches threshold.
func (d *Detection) IsReliable(threshold float64) bool {
	if d == nil {
		return false
	}
	if threshold <= 0 {
		threshold = DefaultReliabilityThreshold
	}
	return d.Confidence >= threshold
}

// MatchesExpectedLanguage reports whether the detected language equals
// expected after both are normalized.
func (d *Detection) MatchesExpectedLanguage(expected string) bool {
	if d == nil || d.OriginalLanguage == "" {
		return false
	}
	want := language.Normalize(expected)
	return want != "" && language.Normalize(d.OriginalLanguage) == want
}

// LanguageName returns the display name of the detected language.
func (d *Detection) LanguageName() string {
	if d == nil {
		return language.DisplayName("")
	}
	return language.DisplayName(d.OriginalLanguage)
}

func cloneStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
