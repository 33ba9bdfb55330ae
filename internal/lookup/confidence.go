package lookup

import (
	"strings"

	"origlang/internal/textutil"
)

// MatchType identifies the strategy that produced a candidate.
type MatchType string

const (
	MatchID        MatchType = "id"
	MatchTitleYear MatchType = "title_year"
	MatchTitle     MatchType = "title"
	MatchFuzzy     MatchType = "fuzzy"
	MatchPartial   MatchType = "partial"
	MatchUnknown   MatchType = "unknown"
)

// Fixed tie-break weights. They are compared across backends, so every
// backend must score through this table.
const (
	WeightExactID        = 1.0
	WeightTitleYearExact = 0.95
	WeightTitleExact     = 0.85
	WeightFuzzyTitleYear = 0.75
	WeightFuzzyTitle     = 0.65
	WeightPartial        = 0.40
	WeightFallback       = 0.20
)

// Similarity thresholds separating exact, fuzzy, and partial title matches.
const (
	ExactTitleSimilarity   = 0.95
	FuzzyTitleSimilarity   = 0.70
	PartialTitleSimilarity = 0.50
)

// DefaultYearTolerance is how far apart two release years may be and still match.
const DefaultYearTolerance = 1

// Scorer maps a candidate onto a confidence value.
type Scorer struct {
	YearTolerance int
}

var defaultScorer = Scorer{YearTolerance: DefaultYearTolerance}

// DetermineConfidence scores a candidate with the default year tolerance.
func DetermineConfidence(q Query, foundTitle string, foundYear int, matchType MatchType) float64 {
	return defaultScorer.DetermineConfidence(q, foundTitle, foundYear, matchType)
}

// DetermineConfidence scores how well a found title/year answers q.
//
// An ID match with an ID-bearing query is exact. Otherwise the score follows
// title similarity, then whether both years are present and within
// tolerance. A recognized match type with no usable title comparison earns
// the fallback weight.
func (s Scorer) DetermineConfidence(q Query, foundTitle string, foundYear int, matchType MatchType) float64 {
	if matchType == MatchID && q.HasID() {
		return WeightExactID
	}

	if q.HasTitle() && strings.TrimSpace(foundTitle) != "" {
		sim := textutil.TitleSimilarity(q.Title, foundTitle)
		bothYears := q.Year != 0 && foundYear != 0
		yearsAgree := bothYears && s.YearsMatch(q.Year, foundYear)
		switch {
		case sim >= ExactTitleSimilarity:
			switch {
			case yearsAgree:
				return WeightTitleYearExact
			case !bothYears:
				return WeightTitleExact
			default:
				return WeightFuzzyTitle
			}
		case sim >= FuzzyTitleSimilarity:
			if yearsAgree {
				return WeightFuzzyTitleYear
			}
			return WeightFuzzyTitle
		case sim >= PartialTitleSimilarity:
			return WeightPartial
		}
	}

	if matchType != "" && matchType != MatchUnknown {
		return WeightFallback
	}
	return 0
}

// YearsMatch reports whether two years are within tolerance.
func (s Scorer) YearsMatch(a, b int) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.YearTolerance
}

// ClassifyTitleMatch picks the match type describing a title comparison.
func (s Scorer) ClassifyTitleMatch(q Query, foundTitle string, foundYear int) MatchType {
	sim := textutil.TitleSimilarity(q.Title, foundTitle)
	switch {
	case sim >= ExactTitleSimilarity && q.Year != 0 && foundYear != 0 && s.YearsMatch(q.Year, foundYear):
		return MatchTitleYear
	case sim >= ExactTitleSimilarity:
		return MatchTitle
	case sim >= FuzzyTitleSimilarity:
		return MatchFuzzy
	default:
		return MatchPartial
	}
}
