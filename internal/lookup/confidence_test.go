package lookup_test

import (
	"testing"

	"origlang/internal/lookup"
)

func TestDetermineConfidence(t *testing.T) {
	yourName := lookup.Query{Title: "Your Name", Year: 2016}
	tests := []struct {
		name       string
		query      lookup.Query
		foundTitle string
		foundYear  int
		matchType  lookup.MatchType
		want       float64
	}{
		{"id match with imdb id", lookup.Query{IMDbID: "tt5311514"}, "", 0, lookup.MatchID, 1.0},
		{"id match with tmdb id", lookup.Query{TMDbID: "372058"}, "Kimi no Na wa", 2016, lookup.MatchID, 1.0},
		{"id match type without id falls back to title", yourName, "Your Name", 2016, lookup.MatchID, 0.95},
		{"exact title and year", yourName, "Your Name", 2016, lookup.MatchTitleYear, 0.95},
		{"exact title year within tolerance", yourName, "your name.", 2017, lookup.MatchTitleYear, 0.95},
		{"exact title no query year", lookup.Query{Title: "Your Name"}, "Your Name", 2016, lookup.MatchTitle, 0.85},
		{"exact title no found year", yourName, "Your Name", 0, lookup.MatchTitle, 0.85},
		{"exact title year far off", yourName, "Your Name", 1999, lookup.MatchTitle, 0.65},
		{"fuzzy title with year", lookup.Query{Title: "abcdefghij", Year: 2000}, "abcdefghXY", 2000, lookup.MatchFuzzy, 0.75},
		{"fuzzy title without year", lookup.Query{Title: "abcdefghij"}, "abcdefghXY", 2000, lookup.MatchFuzzy, 0.65},
		{"partial title", lookup.Query{Title: "abcdefghij"}, "abcdeVWXYZ", 0, lookup.MatchPartial, 0.40},
		{"weak title recognized type", lookup.Query{Title: "Akira"}, "Totally Different", 0, lookup.MatchTitle, 0.20},
		{"no title recognized type", lookup.Query{}, "Something", 0, lookup.MatchPartial, 0.20},
		{"no title unknown type", lookup.Query{}, "", 0, lookup.MatchUnknown, 0},
		{"empty match type", lookup.Query{}, "", 0, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lookup.DetermineConfidence(tt.query, tt.foundTitle, tt.foundYear, tt.matchType)
			if got != tt.want {
				t.Errorf("DetermineConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScorerYearTolerance(t *testing.T) {
	strict := lookup.Scorer{YearTolerance: 0}
	q := lookup.Query{Title: "Your Name", Year: 2016}
	if got := strict.DetermineConfidence(q, "Your Name", 2017, lookup.MatchTitle); got != 0.65 {
		t.Fatalf("strict scorer = %v, want 0.65", got)
	}
	if !strict.YearsMatch(2016, 2016) || strict.YearsMatch(2016, 2015) {
		t.Fatal("unexpected YearsMatch with zero tolerance")
	}
}

func TestClassifyTitleMatch(t *testing.T) {
	s := lookup.Scorer{YearTolerance: 1}
	q := lookup.Query{Title: "Spirited Away", Year: 2001}
	tests := []struct {
		title string
		year  int
		want  lookup.MatchType
	}{
		{"Spirited Away", 2001, lookup.MatchTitleYear},
		{"Spirited Away", 0, lookup.MatchTitle},
		{"Spirited Awa", 2001, lookup.MatchFuzzy},
		{"Sen to Chihiro", 2001, lookup.MatchPartial},
	}
	for _, tt := range tests {
		if got := s.ClassifyTitleMatch(q, tt.title, tt.year); got != tt.want {
			t.Errorf("ClassifyTitleMatch(%q, %d) = %q, want %q", tt.title, tt.year, got, tt.want)
		}
	}
}
