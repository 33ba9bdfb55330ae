package lookup

import (
	"fmt"
	"strings"
)

// MediaType distinguishes films from series.
type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
)

// ParseMediaType maps user input onto a MediaType, defaulting to movie.
func ParseMediaType(value string) MediaType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "tv", "series", "show":
		return MediaTV
	default:
		return MediaMovie
	}
}

// Query describes one lookup request. Zero values mean "absent": a Year,
// Season or Episode of 0 and an empty Title or ID are not sent to backends
// and do not take part in cache keys.
type Query struct {
	Title     string    `json:"title,omitempty"`
	Year      int       `json:"year,omitempty"`
	IMDbID    string    `json:"imdb_id,omitempty"`
	TMDbID    string    `json:"tmdb_id,omitempty"`
	MediaType MediaType `json:"media_type,omitempty"`
	Season    int       `json:"season,omitempty"`
	Episode   int       `json:"episode,omitempty"`
	// ExactTitle disables fuzzy title matching; candidates must match the
	// query title after normalization.
	ExactTitle   bool `json:"exact_title,omitempty"`
	IncludeAdult bool `json:"include_adult,omitempty"`
}

// Normalized returns a copy with trimmed strings and a concrete media type.
func (q Query) Normalized() Query {
	q.Title = strings.TrimSpace(q.Title)
	q.IMDbID = strings.TrimSpace(q.IMDbID)
	q.TMDbID = strings.TrimSpace(q.TMDbID)
	if q.MediaType != MediaTV {
		q.MediaType = MediaMovie
	}
	return q
}

// HasID reports whether the query carries an IMDb or TMDb identifier.
func (q Query) HasID() bool {
	return strings.TrimSpace(q.IMDbID) != "" || strings.TrimSpace(q.TMDbID) != ""
}

// HasTitle reports whether the query carries a searchable title.
func (q Query) HasTitle() bool {
	return strings.TrimSpace(q.Title) != ""
}

// Canonical returns the identifying fields that are set, keyed by their
// wire names. Two queries describe the same lookup exactly when their
// canonical maps are equal.
func (q Query) Canonical() map[string]any {
	q = q.Normalized()
	fields := map[string]any{"media_type": string(q.MediaType)}
	if q.Title != "" {
		fields["title"] = q.Title
	}
	if q.Year != 0 {
		fields["year"] = q.Year
	}
	if q.IMDbID != "" {
		fields["imdb_id"] = q.IMDbID
	}
	if q.TMDbID != "" {
		fields["tmdb_id"] = q.TMDbID
	}
	if q.Season != 0 {
		fields["season"] = q.Season
	}
	if q.Episode != 0 {
		fields["episode"] = q.Episode
	}
	return fields
}

func (q Query) String() string {
	var parts []string
	if q.Title != "" {
		if q.Year != 0 {
			parts = append(parts, fmt.Sprintf("%s (%d)", q.Title, q.Year))
		} else {
			parts = append(parts, q.Title)
		}
	}
	if q.IMDbID != "" {
		parts = append(parts, "imdb="+q.IMDbID)
	}
	if q.TMDbID != "" {
		parts = append(parts, "tmdb="+q.TMDbID)
	}
	if q.Season != 0 || q.Episode != 0 {
		parts = append(parts, fmt.Sprintf("S%02dE%02d", q.Season, q.Episode))
	}
	if len(parts) == 0 {
		return "<empty query>"
	}
	return strings.Join(parts, " ")
}
