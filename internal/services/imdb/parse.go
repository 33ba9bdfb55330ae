package imdb

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"origlang/internal/language"
)

const (
	maxSearchRows = 5
	maxCountries  = 5
)

var (
	titleHrefPattern   = regexp.MustCompile(`/title/(tt\d+)/`)
	parenYearPattern   = regexp.MustCompile(`\((\d{4})\)`)
	yearPattern        = regexp.MustCompile(`(\d{4})`)
	languageLabel      = regexp.MustCompile(`(?i)^\s*(original )?languages?:?\s*$`)
	countryLabel       = regexp.MustCompile(`(?i)^\s*countr(y|ies)( of origin)?:?\s*$|production countr`)
	detailsLanguage    = regexp.MustCompile(`(?:original )?language:\s*([a-z]+)`)
	countryTextPattern = regexp.MustCompile(`(?i)(?:country of origin|production countries|countries):\s*([^\n<]+)`)
	storylinePatterns  = []*regexp.Regexp{
		regexp.MustCompile(`originally (?:made |filmed |produced )?in (\w+)`),
		regexp.MustCompile(`(\w+) language film`),
		regexp.MustCompile(`(\w+)-language`),
		regexp.MustCompile(`spoken in (\w+)`),
	}
)

// Language extraction strategies, in the order they are tried.
const (
	StrategyTechSpecs  = "tech_specs"
	StrategyDetails    = "details"
	StrategyStructured = "structured_data"
	StrategyStoryline  = "storyline"
)

// SearchResult is one row of the title search page.
type SearchResult struct {
	IMDbID string
	Title  string
	Year   int
	Href   string
}

// TitlePage holds what the title page reveals about a work.
type TitlePage struct {
	Title string
	Year  int
	// Language is the ISO 639-1 code of the original language, empty when
	// no strategy found one.
	Language            string
	LanguageStrategy    string
	SpokenLanguages     []string
	ProductionCountries []string
}

// ParseSearchResults extracts up to five title rows from a /find page.
func ParseSearchResults(html []byte) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	section := firstMatch(doc, `section[data-testid="find-results-section-title"]`, `div.findSection`)
	if section == nil {
		return nil, nil
	}
	rows := section.Find("li")
	if rows.Length() == 0 {
		rows = section.Find("tr")
	}

	var results []SearchResult
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= maxSearchRows {
			return false
		}
		link := titleLink(row)
		if link == nil {
			return true
		}
		href, _ := link.Attr("href")
		match := titleHrefPattern.FindStringSubmatch(href)
		if match == nil {
			return true
		}
		result := SearchResult{
			IMDbID: match[1],
			Title:  normSpace(link.Text()),
			Href:   href,
		}
		if m := parenYearPattern.FindStringSubmatch(row.Text()); m != nil {
			result.Year, _ = strconv.Atoi(m[1])
		} else if m := yearPattern.FindStringSubmatch(row.Find("span, li").Text()); m != nil {
			result.Year, _ = strconv.Atoi(m[1])
		}
		results = append(results, result)
		return true
	})
	return results, nil
}

// titleLink returns the first anchor in row that carries visible text and a
// title href; poster links without text are skipped.
func titleLink(row *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	row.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || !titleHrefPattern.MatchString(href) || normSpace(a.Text()) == "" {
			return true
		}
		found = a
		return false
	})
	return found
}

// ParseTitlePage extracts title, year, languages and countries.
func ParseTitlePage(html []byte) (*TitlePage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	page := &TitlePage{}

	if h1 := firstMatch(doc,
		`h1[data-testid="hero-title-block__title"]`,
		`h1[data-testid="hero__pageTitle"]`,
		`h1.titleBar`,
	); h1 != nil {
		page.Title = normSpace(h1.Text())
	}

	if yearEl := firstMatch(doc, `span.titleBar__year`, `a[href*="/year/"]`, `a[href*="releaseinfo"]`); yearEl != nil {
		if m := yearPattern.FindStringSubmatch(yearEl.Text()); m != nil {
			page.Year, _ = strconv.Atoi(m[1])
		}
	}

	techValues := techSpecLanguages(doc)
	page.SpokenLanguages = language.NormalizeList(techValues)

	for _, strategy := range []struct {
		name    string
		extract func(*goquery.Document) string
	}{
		{StrategyTechSpecs, func(*goquery.Document) string { return firstOf(techValues) }},
		{StrategyDetails, detailsLanguageName},
		{StrategyStructured, structuredLanguage},
		{StrategyStoryline, storylineLanguage},
	} {
		if code := language.Normalize(strategy.extract(doc)); code != "" {
			page.Language = code
			page.LanguageStrategy = strategy.name
			break
		}
	}

	page.ProductionCountries = productionCountries(doc)
	return page, nil
}

// techSpecLanguages returns every value of the Language row in the tech
// specs block, in page order.
func techSpecLanguages(doc *goquery.Document) []string {
	specs := firstMatch(doc, `section[data-testid="TechSpecs"]`, `div#titleDetails`)
	if specs == nil {
		specs = firstMatch(doc, `section[data-testid="Details"]`)
	}
	if specs == nil {
		return nil
	}
	return labelledValues(specs, languageLabel)
}

// labelledValues finds the first leaf element whose text matches label and
// returns the values of the element following it.
func labelledValues(scope *goquery.Selection, label *regexp.Regexp) []string {
	var values []string
	scope.Find("dt, div, span, h4, li, label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() != 0 || !label.MatchString(s.Text()) {
			return true
		}
		value := s.Next()
		if value.Length() == 0 {
			value = s.Parent().Next()
		}
		if value.Length() == 0 {
			return true
		}
		if value.Is("a") {
			value = s.NextAllFiltered("a")
		}
		values = splitValues(value)
		return len(values) == 0
	})
	return values
}

func splitValues(value *goquery.Selection) []string {
	var out []string
	value.Filter("a").AddSelection(value.Find("a")).Each(func(_ int, a *goquery.Selection) {
		if text := normSpace(a.Text()); text != "" {
			out = append(out, text)
		}
	})
	if len(out) > 0 {
		return out
	}
	for _, part := range strings.FieldsFunc(value.Text(), func(r rune) bool { return r == ',' || r == '|' }) {
		if text := normSpace(part); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func detailsLanguageName(doc *goquery.Document) string {
	details := firstMatch(doc, `section[data-testid="Details"]`, `div.article`)
	if details == nil {
		return ""
	}
	for _, m := range detailsLanguage.FindAllStringSubmatch(strings.ToLower(details.Text()), -1) {
		if language.IsKnownName(m[1]) {
			return m[1]
		}
	}
	return ""
}

func structuredLanguage(doc *goquery.Document) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		switch v := data["inLanguage"].(type) {
		case string:
			found = v
		case []any:
			if len(v) > 0 {
				found, _ = v[0].(string)
			}
		}
		if found == "" {
			found, _ = data["originalLanguage"].(string)
		}
		return strings.TrimSpace(found) == ""
	})
	return strings.ToLower(strings.TrimSpace(found))
}

func storylineLanguage(doc *goquery.Document) string {
	storyline := firstMatch(doc, `section[data-testid="Storyline"]`, `div.summary_text`)
	if storyline == nil {
		return ""
	}
	text := strings.ToLower(storyline.Text())
	for _, pattern := range storylinePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil && language.IsKnownName(m[1]) {
			return m[1]
		}
	}
	return ""
}

func productionCountries(doc *goquery.Document) []string {
	countries := labelledValues(doc.Selection, countryLabel)
	if len(countries) == 0 {
		for _, m := range countryTextPattern.FindAllStringSubmatch(doc.Text(), -1) {
			for _, part := range strings.Split(m[1], ",") {
				if country := normSpace(part); country != "" && len(country) <= 50 {
					countries = append(countries, country)
				}
			}
		}
	}
	countries = dedupe(countries)
	if len(countries) > maxCountries {
		countries = countries[:maxCountries]
	}
	return countries
}

func firstMatch(doc *goquery.Document, selectors ...string) *goquery.Selection {
	for _, selector := range selectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
