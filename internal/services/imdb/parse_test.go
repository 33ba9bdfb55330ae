package imdb

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func TestParseSearchResults(t *testing.T) {
	results, err := ParseSearchResults(readFixture(t, "search.html"))
	if err != nil {
		t.Fatalf("ParseSearchResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 title rows, got %d: %+v", len(results), results)
	}
	want := SearchResult{IMDbID: "tt5311514", Title: "Your Name.", Year: 2016, Href: "/title/tt5311514/?ref_=fn_al_tt_1"}
	if results[0] != want {
		t.Fatalf("first row = %+v, want %+v", results[0], want)
	}
	if results[1].IMDbID != "tt11968218" || results[1].Year != 2020 {
		t.Fatalf("unexpected second row %+v", results[1])
	}
}

func TestParseSearchResultsWithoutSection(t *testing.T) {
	results, err := ParseSearchResults([]byte(`<html><body><p>No results</p></body></html>`))
	if err != nil {
		t.Fatalf("ParseSearchResults: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
}

func TestParseTitlePageStrategies(t *testing.T) {
	tests := []struct {
		fixture   string
		title     string
		year      int
		language  string
		strategy  string
		spoken    []string
		countries []string
	}{
		{
			fixture:   "title_techspecs.html",
			title:     "Your Name.",
			year:      2016,
			language:  "ja",
			strategy:  StrategyTechSpecs,
			spoken:    []string{"ja", "en"},
			countries: []string{"Japan"},
		},
		{
			fixture:   "title_legacy.html",
			title:     "Amelie",
			year:      2001,
			language:  "fr",
			strategy:  StrategyTechSpecs,
			spoken:    []string{"fr", "ru"},
			countries: []string{"France", "Germany"},
		},
		{
			fixture:   "title_details.html",
			title:     "The Host",
			language:  "ko",
			strategy:  StrategyDetails,
			spoken:    []string{},
			countries: []string{},
		},
		{
			fixture:   "title_jsonld.html",
			title:     "Parasite",
			year:      2019,
			language:  "ko",
			strategy:  StrategyStructured,
			spoken:    []string{},
			countries: []string{},
		},
		{
			fixture:   "title_storyline.html",
			title:     "The Celebration",
			language:  "da",
			strategy:  StrategyStoryline,
			spoken:    []string{},
			countries: []string{},
		},
		{
			fixture:   "title_nolang.html",
			title:     "Untitled Project",
			spoken:    []string{},
			countries: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			page, err := ParseTitlePage(readFixture(t, tt.fixture))
			if err != nil {
				t.Fatalf("ParseTitlePage: %v", err)
			}
			if page.Title != tt.title || page.Year != tt.year {
				t.Errorf("title/year = %q/%d, want %q/%d", page.Title, page.Year, tt.title, tt.year)
			}
			if page.Language != tt.language || page.LanguageStrategy != tt.strategy {
				t.Errorf("language = %q via %q, want %q via %q", page.Language, page.LanguageStrategy, tt.language, tt.strategy)
			}
			if !reflect.DeepEqual(page.SpokenLanguages, tt.spoken) {
				t.Errorf("spoken = %v, want %v", page.SpokenLanguages, tt.spoken)
			}
			if !reflect.DeepEqual(page.ProductionCountries, tt.countries) {
				t.Errorf("countries = %v, want %v", page.ProductionCountries, tt.countries)
			}
		})
	}
}

func TestStorylineIgnoresUnknownWords(t *testing.T) {
	page, err := ParseTitlePage([]byte(`<section data-testid="Storyline"><p>A big-language adventure.</p></section>`))
	if err != nil {
		t.Fatalf("ParseTitlePage: %v", err)
	}
	if page.Language != "" {
		t.Fatalf("expected no language, got %q", page.Language)
	}
}

func TestNormalizeID(t *testing.T) {
	if got := NormalizeID("5311514"); got != "tt5311514" {
		t.Fatalf("NormalizeID = %q", got)
	}
	if got := NormalizeID("tt5311514"); got != "tt5311514" {
		t.Fatalf("NormalizeID = %q", got)
	}
}
