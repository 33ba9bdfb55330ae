package filename

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"origlang/internal/lookup"
)

// Parsed holds everything recognized in one file name. Zero values mean
// the field was not present.
type Parsed struct {
	Title        string `json:"title,omitempty"`
	Year         int    `json:"year,omitempty"`
	IMDbID       string `json:"imdb_id,omitempty"`
	TMDbID       string `json:"tmdb_id,omitempty"`
	Season       int    `json:"season,omitempty"`
	Episode      int    `json:"episode,omitempty"`
	EpisodeTitle string `json:"episode_title,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	Source       string `json:"source,omitempty"`
	Codec        string `json:"codec,omitempty"`
	Audio        string `json:"audio,omitempty"`
	ReleaseGroup string `json:"release_group,omitempty"`
	IsTV         bool   `json:"is_tv"`
	Original     string `json:"original"`
}

var (
	imdbTagPattern = regexp.MustCompile(`(?i)\{imdb[_-]?(tt\d{7,8})\}`)
	tmdbTagPattern = regexp.MustCompile(`(?i)\{tmdb[_-]?(\d+)\}`)

	// Ordered most specific first; the first match wins.
	episodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(.+?)\s*\(\d{4}\)\s*-\s*S(\d+)E(\d+)(?:\s*-\s*(.+?))?(?:\s*\[.*?\])*$`),
		regexp.MustCompile(`(?i)^(.+?)\s+S(\d+)E(\d+)(?:\s*-\s*(.+?))?(?:\s*\[.*?\])*$`),
		regexp.MustCompile(`(?i)^(.+?)\s*-\s*S(\d+)E(\d+)(?:\s*-\s*(.+?))?(?:\s*\[.*?\])*$`),
		regexp.MustCompile(`(?i)^(.+?)\s+(\d+)x(\d+)(?:\s*-\s*(.+?))?(?:\s*\[.*?\])*$`),
		regexp.MustCompile(`(?i)^(.+?)\s*-\s*(\d+)x(\d+)(?:\s*-\s*(.+?))?(?:\s*\[.*?\])*$`),
	}
	moviePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(.+?)\s*\((\d{4})\)`),
		regexp.MustCompile(`(?i)^(.+?)\s+(\d{4})(?:\s|\[|$)`),
	}

	resolutionPattern = regexp.MustCompile(`(?i)\b(480p|720p|1080p|1440p|2160p|4K)\b`)
	sourcePattern     = regexp.MustCompile(`(?i)\b(BluRay|Blu-ray|BDRip|WEB-?DL|WEBRip|DVDRip|HDTV|CAM|TS)\b`)
	codecPattern      = regexp.MustCompile(`(?i)\b(x264|x265|H\.?264|H\.?265|XviD|DivX|HEVC|AV1)\b`)
	audioPattern      = regexp.MustCompile(`(?i)\b(DTS|AC3|AAC|MP3|FLAC|EAC3|TrueHD|Opus)\s*(\d\.\d)?\b`)
	releaseGroupTail  = regexp.MustCompile(`[-\s]([A-Za-z0-9]+)$`)

	whitespacePattern = regexp.MustCompile(`\s+`)
	sceneSeparators   = strings.NewReplacer(".", " ", "_", " ")
)

// Parse inspects a file name (a bare name or a full path) and returns
// what it recognized. A name with no recognizable structure yields its
// stem as the title.
func Parse(name string) Parsed {
	result := Parsed{Original: name}
	stem := stripExtension(filepath.Base(strings.TrimSpace(name)))
	if stem == "" || stem == "." {
		return result
	}

	if m := imdbTagPattern.FindStringSubmatch(stem); m != nil {
		result.IMDbID = strings.ToLower(m[1])
	}
	if m := tmdbTagPattern.FindStringSubmatch(stem); m != nil {
		result.TMDbID = m[1]
	}

	titleSource := stem
	if !strings.ContainsAny(stem, " ") {
		titleSource = sceneSeparators.Replace(stem)
	}

	if !matchEpisode(titleSource, &result) {
		matchMovie(titleSource, &result)
	}
	if result.Title == "" && result.IMDbID == "" && result.TMDbID == "" {
		result.Title = cleanTitle(titleSource)
	}

	extractQuality(stem, &result)
	extractReleaseGroup(stem, &result)
	return result
}

// Query converts the parsed name into a lookup query. Episode names
// produce a TV query carrying season and episode numbers.
func (p Parsed) Query() lookup.Query {
	q := lookup.Query{
		Title:     p.Title,
		Year:      p.Year,
		IMDbID:    p.IMDbID,
		TMDbID:    p.TMDbID,
		MediaType: lookup.MediaMovie,
	}
	if p.IsTV {
		q.MediaType = lookup.MediaTV
		q.Season = p.Season
		q.Episode = p.Episode
	}
	return q
}

// Empty reports whether nothing usable for a lookup was recognized.
func (p Parsed) Empty() bool {
	return p.Title == "" && p.IMDbID == "" && p.TMDbID == ""
}

func stripExtension(base string) string {
	ext := filepath.Ext(base)
	if ext == "" || len(ext) > 5 || strings.ContainsAny(ext, " ])}") {
		return base
	}
	for _, r := range ext[1:] {
		if !isAlnum(r) {
			return base
		}
	}
	if _, err := strconv.Atoi(ext[1:]); err == nil {
		// "Movie.2019" keeps its year.
		return base
	}
	return strings.TrimSuffix(base, ext)
}

func matchEpisode(name string, result *Parsed) bool {
	for _, pattern := range episodePatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		season, err1 := strconv.Atoi(m[2])
		episode, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			continue
		}
		result.Title = cleanTitle(m[1])
		result.Season = season
		result.Episode = episode
		result.EpisodeTitle = strings.TrimSpace(m[4])
		result.IsTV = true
		return true
	}
	return false
}

func matchMovie(name string, result *Parsed) {
	for _, pattern := range moviePatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[2])
		if err != nil || year < 1880 || year > 2100 {
			continue
		}
		result.Title = cleanTitle(m[1])
		result.Year = year
		return
	}
}

func cleanTitle(value string) string {
	value = imdbTagPattern.ReplaceAllString(value, "")
	value = tmdbTagPattern.ReplaceAllString(value, "")
	if i := strings.IndexByte(value, '['); i >= 0 {
		value = value[:i]
	}
	value = whitespacePattern.ReplaceAllString(value, " ")
	return strings.Trim(value, " -")
}

func extractQuality(name string, result *Parsed) {
	if m := resolutionPattern.FindStringSubmatch(name); m != nil {
		result.Resolution = m[1]
	}
	if m := sourcePattern.FindStringSubmatch(name); m != nil {
		result.Source = m[1]
	}
	if m := codecPattern.FindStringSubmatch(name); m != nil {
		result.Codec = m[1]
	}
	if m := audioPattern.FindStringSubmatch(name); m != nil {
		audio := m[1]
		if m[2] != "" {
			audio += " " + m[2]
		}
		result.Audio = audio
	}
}

func extractReleaseGroup(name string, result *Parsed) {
	cleaned := name
	for _, pattern := range []*regexp.Regexp{resolutionPattern, sourcePattern, codecPattern, audioPattern} {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	if m := releaseGroupTail.FindStringSubmatch(cleaned); m != nil {
		result.ReleaseGroup = m[1]
	}
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
