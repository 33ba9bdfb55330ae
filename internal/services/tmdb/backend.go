package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"origlang/internal/config"
	"origlang/internal/language"
	"origlang/internal/logging"
	"origlang/internal/lookup"
	"origlang/internal/ratelimit"
	"origlang/internal/services"
	"origlang/internal/textutil"
)

// Name is the backend identifier reported in detections.
const Name = config.BackendTMDB

const (
	searchCandidates = 5
	yearBonus        = 0.2
	minSearchScore   = 0.3
)

// Backend resolves original languages through the TMDB API.
type Backend struct {
	client *Client
	scorer lookup.Scorer
	logger *slog.Logger
}

var _ lookup.Backend = (*Backend)(nil)

// NewBackend wraps client. A nil client yields a backend that reports itself unavailable.
func NewBackend(client *Client, scorer lookup.Scorer, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Backend{
		client: client,
		scorer: scorer,
		logger: logging.NewComponentLogger(logger, "tmdb"),
	}
}

// NewBackendFromConfig builds the client from the [tmdb] and [detection]
// sections. Without an API key the backend is unavailable.
func NewBackendFromConfig(cfg *config.Config, userAgent string, logger *slog.Logger) *Backend {
	scorer := lookup.Scorer{YearTolerance: cfg.Detection.YearTolerance}
	if strings.TrimSpace(cfg.TMDB.APIKey) == "" {
		return NewBackend(nil, scorer, logger)
	}
	limiter := ratelimit.NewWindow(cfg.TMDB.RateLimit, time.Duration(cfg.TMDB.RateWindow*float64(time.Second)))
	client, err := New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		WithRateLimiter(limiter),
		WithUserAgent(userAgent),
		WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
	)
	if err != nil {
		if logger != nil {
			logger.Warn("tmdb client unavailable", logging.Error(err))
		}
		return NewBackend(nil, scorer, logger)
	}
	return NewBackend(client, scorer, logger)
}

// Name implements lookup.Backend.
func (b *Backend) Name() string { return Name }

// Available reports whether an API key was configured.
func (b *Backend) Available() bool { return b != nil && b.client != nil }

// Close releases idle HTTP connections.
func (b *Backend) Close() error {
	if b.Available() {
		b.client.CloseIdleConnections()
	}
	return nil
}

// Detect looks q up by external ID first and falls back to a title search.
func (b *Backend) Detect(ctx context.Context, q lookup.Query) (*lookup.Detection, error) {
	if !b.Available() {
		return nil, services.Wrap(services.ErrBackendUnavailable, "tmdb", "detect", "api key not configured", nil)
	}
	q = q.Normalized()
	start := time.Now()
	logger := logging.WithContext(ctx, b.logger)

	var (
		det *lookup.Detection
		err error
	)
	if q.HasID() {
		det, err = b.detectByID(ctx, q)
		if err != nil {
			return nil, err
		}
	}
	if det == nil && q.HasTitle() {
		det, err = b.detectByTitle(ctx, q)
		if err != nil {
			return nil, err
		}
	}
	if det == nil {
		logger.Debug("tmdb returned no match", logging.String("query", q.String()))
		return nil, nil
	}
	det.DetectionTimeMs = float64(time.Since(start).Microseconds()) / 1000
	attrs := append([]logging.Attr{logging.Query(q)},
		logging.DetectionAttrs(det.OriginalLanguage, det.Confidence, det.Method)...)
	logger.Debug("tmdb match", logging.Args(attrs...)...)
	return det, nil
}

func (b *Backend) detectByID(ctx context.Context, q lookup.Query) (*lookup.Detection, error) {
	if q.IMDbID != "" {
		found, err := b.client.Find(ctx, q.IMDbID, "imdb_id")
		if err != nil {
			return nil, wrapCall("find", err)
		}
		switch {
		case len(found.MovieResults) > 0:
			return b.movieDetection(ctx, q, found.MovieResults[0].ID, lookup.MethodIMDbIDMatch, lookup.MatchID, "")
		case len(found.TVResults) > 0:
			return b.tvDetection(ctx, q, found.TVResults[0].ID, lookup.MethodIMDbIDMatch, lookup.MatchID, "")
		}
	}
	if q.TMDbID != "" {
		id, err := strconv.ParseInt(q.TMDbID, 10, 64)
		if err != nil || id <= 0 {
			b.logger.Warn("invalid tmdb id",
				logging.String("tmdb_id", q.TMDbID),
				logging.String(logging.FieldEventType, "invalid_tmdb_id"),
				logging.String(logging.FieldImpact, "falling back to title search"),
			)
			return nil, nil
		}
		det, err := b.movieDetection(ctx, q, id, lookup.MethodTMDbIDMatch, lookup.MatchID, "")
		if err != nil && !IsNotFound(err) {
			return nil, err
		}
		if det != nil {
			return det, nil
		}
		det, err = b.tvDetection(ctx, q, id, lookup.MethodTMDbIDMatch, lookup.MatchID, "")
		if err != nil && !IsNotFound(err) {
			return nil, err
		}
		return det, nil
	}
	return nil, nil
}

type candidate struct {
	result    Result
	title     string
	mediaType lookup.MediaType
	score     float64
}

func (b *Backend) detectByTitle(ctx context.Context, q lookup.Query) (*lookup.Detection, error) {
	opts := SearchOptions{Year: q.Year, IncludeAdult: q.IncludeAdult}

	movies, err := b.client.SearchMovie(ctx, q.Title, opts)
	if err != nil {
		return nil, wrapCall("search movie", err)
	}
	shows, err := b.client.SearchTV(ctx, q.Title, opts)
	if err != nil {
		return nil, wrapCall("search tv", err)
	}

	best, ok := b.bestCandidate(q, movies.Results, lookup.MediaMovie)
	if tv, tvOK := b.bestCandidate(q, shows.Results, lookup.MediaTV); tvOK {
		if !ok || tv.score > best.score || (tv.score == best.score && q.MediaType == lookup.MediaTV) {
			best, ok = tv, true
		}
	}
	if !ok {
		return nil, nil
	}

	matchType := b.scorer.ClassifyTitleMatch(q, best.title, best.result.Year())
	if best.mediaType == lookup.MediaTV {
		return b.tvDetection(ctx, q, best.result.ID, lookup.MethodTitleSearch, matchType, best.title)
	}
	return b.movieDetection(ctx, q, best.result.ID, lookup.MethodTitleSearch, matchType, best.title)
}

// bestCandidate scores the top results by title similarity plus a bonus for
// an exact year and returns the highest scoring one above the floor.
func (b *Backend) bestCandidate(q lookup.Query, results []Result, mediaType lookup.MediaType) (candidate, bool) {
	var (
		best  candidate
		found bool
	)
	for i, result := range results {
		if i >= searchCandidates {
			break
		}
		title, sim := bestTitle(q.Title, result)
		if title == "" {
			continue
		}
		if q.ExactTitle && sim < 1 {
			continue
		}
		score := sim
		if q.Year != 0 && result.Year() == q.Year {
			score += yearBonus
		}
		if score < minSearchScore {
			continue
		}
		if !found || score > best.score {
			best = candidate{result: result, title: title, mediaType: mediaType, score: score}
			found = true
		}
	}
	return best, found
}

// bestTitle compares the query against the localized and original titles.
func bestTitle(query string, result Result) (string, float64) {
	var (
		bestName string
		bestSim  float64
	)
	for _, name := range []string{result.DisplayTitle(), result.OriginalTitle, result.OriginalName} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if sim := textutil.TitleSimilarity(query, name); bestName == "" || sim > bestSim {
			bestName, bestSim = name, sim
		}
	}
	return bestName, bestSim
}

func (b *Backend) movieDetection(ctx context.Context, q lookup.Query, id int64, method string, matchType lookup.MatchType, foundTitle string) (*lookup.Detection, error) {
	details, err := b.client.MovieDetails(ctx, id)
	if err != nil {
		return nil, wrapCall("movie details", err)
	}
	return b.buildDetection(q, details, method, matchType, foundTitle, "Movie"), nil
}

func (b *Backend) tvDetection(ctx context.Context, q lookup.Query, id int64, method string, matchType lookup.MatchType, foundTitle string) (*lookup.Detection, error) {
	details, err := b.client.TVDetails(ctx, id)
	if err != nil {
		return nil, wrapCall("tv details", err)
	}
	return b.buildDetection(q, details, method, matchType, foundTitle, "TV"), nil
}

func (b *Backend) buildDetection(q lookup.Query, details *Details, method string, matchType lookup.MatchType, foundTitle, kind string) *lookup.Detection {
	original := language.Normalize(details.OriginalLanguage)
	if original == "" {
		return nil
	}
	title := details.DisplayTitle()
	year := details.Year()
	if foundTitle == "" {
		foundTitle = title
	}

	spoken := make([]string, 0, len(details.SpokenLanguages))
	for _, lang := range details.SpokenLanguages {
		if lang.ISO6391 != "" {
			spoken = append(spoken, lang.ISO6391)
		}
	}
	countries := make([]string, 0, len(details.ProductionCountries))
	for _, country := range details.ProductionCountries {
		if country.ISO31661 != "" {
			countries = append(countries, country.ISO31661)
		}
	}
	if len(countries) == 0 {
		countries = append(countries, details.OriginCountry...)
	}

	return lookup.NewDetection(lookup.Detection{
		OriginalLanguage:    original,
		Confidence:          b.scorer.DetermineConfidence(q, foundTitle, year, matchType),
		Source:              Name,
		Method:              method,
		Details:             fmt.Sprintf("%s: %s (%s)", kind, title, formatYear(year)),
		Title:               title,
		Year:                year,
		IMDbID:              details.IMDbID,
		TMDbID:              strconv.FormatInt(details.ID, 10),
		SpokenLanguages:     language.NormalizeList(spoken),
		ProductionCountries: countries,
		RawResponse: map[string]any{
			"id":                details.ID,
			"media_type":        details.MediaType,
			"original_language": details.OriginalLanguage,
			"original_title":    firstNonEmpty(details.OriginalTitle, details.OriginalName),
			"popularity":        details.Popularity,
		},
	})
}

func wrapCall(operation string, err error) error {
	return services.Wrap(services.ErrBackendCallFailed, "tmdb", operation, "", err)
}

func formatYear(year int) string {
	if year == 0 {
		return "unknown"
	}
	return strconv.Itoa(year)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
